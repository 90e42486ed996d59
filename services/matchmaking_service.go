package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MatchmakingService exposes the queue, pairing, and confirmation flows over
// HTTP. Handlers delegate to the server-side engines; nothing here mutates
// match state directly except through the stores.
type MatchmakingService struct {
	DB         *gorm.DB
	Matchmaker *Matchmaker
	Confirmer  *WinnerConfirmer
	Queue      QueueStore
	Matches    MatchStore
	Profiles   ProfileStore
}

func NewMatchmakingService(db *gorm.DB, mm *Matchmaker, wc *WinnerConfirmer) *MatchmakingService {
	return &MatchmakingService{
		DB:         db,
		Matchmaker: mm,
		Confirmer:  wc,
		Queue:      mm.Queue,
		Matches:    mm.Matches,
		Profiles:   mm.Profiles,
	}
}

// StartSearch puts the calling user into the ranked queue.
func (s *MatchmakingService) StartSearch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Username == "" {
		// fall back to the profile mirror for the display name
		profile, ok, err := s.Profiles.FindByExternalID(c.Context(), userID)
		if err == nil && ok {
			req.Username = profile.Username
		}
	}
	if req.Username == "" {
		return c.Status(400).JSON(fiber.Map{"error": "username required"})
	}

	sess, err := s.Matchmaker.StartSearch(c.Context(), userID, req.Username)
	if err != nil {
		log.Printf("DB Error starting search for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to enter queue"})
	}

	return c.Status(200).JSON(fiber.Map{
		"state":           sess.State(),
		"elapsed_seconds": sess.ElapsedSeconds(),
	})
}

// CancelSearch removes the caller from the queue and stops their session.
func (s *MatchmakingService) CancelSearch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if err := s.Matchmaker.CancelSearch(c.Context(), userID); err != nil {
		log.Printf("DB Error cancelling search for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to leave queue"})
	}
	return c.JSON(fiber.Map{"state": SearchCancelled})
}

// SearchStatus reports the caller's session state, including the paired match
// and opponent profile once one is found.
func (s *MatchmakingService) SearchStatus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	sess, ok := s.Matchmaker.Session(userID)
	if !ok {
		return c.JSON(fiber.Map{"state": SearchIdle})
	}

	resp := fiber.Map{
		"state":           sess.State(),
		"elapsed_seconds": sess.ElapsedSeconds(),
	}
	if err := sess.Err(); err != nil {
		resp["error"] = err.Error()
	}
	if match, found := sess.Match(); found {
		resp["match"] = match
		if opponent, ok := sess.Opponent(); ok {
			resp["opponent"] = opponent
		}
	}
	return c.JSON(resp)
}

// QueueSize returns the number of players currently waiting.
func (s *MatchmakingService) QueueSize(c *fiber.Ctx) error {
	n, err := s.Queue.Count(c.Context())
	if err != nil {
		log.Printf("DB Error counting queue: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"count": n})
}

// GetMatch returns the current match row snapshot for a participant.
func (s *MatchmakingService) GetMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matchID := c.Params("match_id")

	rec, found, err := s.Matches.FindByID(c.Context(), matchID)
	if err != nil {
		log.Printf("DB Error fetching match %s: %v", matchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if !found {
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	}
	if !rec.HasParticipant(userID) {
		return c.Status(403).JSON(fiber.Map{"error": "not a participant of this match"})
	}
	return c.JSON(rec)
}

// SelectWinner records which player the caller believes won.
func (s *MatchmakingService) SelectWinner(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matchID := c.Params("match_id")

	var req struct {
		Winner string `json:"winner"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Winner == "" {
		return c.Status(400).JSON(fiber.Map{"error": "winner required"})
	}

	err := s.Confirmer.Select(c.Context(), matchID, userID, req.Winner)
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	case errors.Is(err, ErrNotParticipant):
		return c.Status(400).JSON(fiber.Map{"error": "winner must be one of the match participants"})
	case err != nil:
		log.Printf("DB Error selecting winner on %s: %v", matchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to record selection"})
	}

	sess, _ := s.Confirmer.Session(matchID, userID)
	return c.JSON(fiber.Map{"state": sess.State(), "selection": sess.Selection()})
}

// ConfirmWinner submits the caller's selection for reconciliation.
func (s *MatchmakingService) ConfirmWinner(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	matchID := c.Params("match_id")

	err := s.Confirmer.Confirm(c.Context(), matchID, userID)
	switch {
	case errors.Is(err, ErrNoSelection):
		return c.Status(400).JSON(fiber.Map{"error": "select a winner before confirming"})
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	case err != nil:
		log.Printf("DB Error confirming winner on %s: %v", matchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to confirm winner"})
	}

	return s.confirmationStatus(c, matchID, userID)
}

// ConfirmationStatus reports the caller's side of the handshake.
func (s *MatchmakingService) ConfirmationStatus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	return s.confirmationStatus(c, c.Params("match_id"), userID)
}

func (s *MatchmakingService) confirmationStatus(c *fiber.Ctx, matchID, userID string) error {
	sess, ok := s.Confirmer.Session(matchID, userID)
	if !ok {
		return c.JSON(fiber.Map{"state": ConfirmNoSelection})
	}
	return c.JSON(fiber.Map{
		"state":     sess.State(),
		"selection": sess.Selection(),
		"countdown": sess.Countdown(),
	})
}

// GetProfile is the read-only opponent lookup against the profile mirror.
func (s *MatchmakingService) GetProfile(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	profile, found, err := s.Profiles.FindByExternalID(c.Context(), userID)
	if err != nil {
		log.Printf("DB Error fetching profile %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	if !found {
		return c.Status(404).JSON(fiber.Map{"error": "profile not found"})
	}

	return c.JSON(fiber.Map{
		"external_user_id": profile.ExternalUserID,
		"username":         profile.Username,
		"profile_image":    profile.ProfileImageURL,
	})
}
