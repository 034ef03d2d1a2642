package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"libripal/internal/notification/store"
	patronmodels "libripal/internal/patron/models"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/requestcontext"
)

const (
	linkCodeBytes = 6
	linkCodeTTL   = 10 * time.Minute
)

// GenerateLinkCode mints a one-shot code the patron pastes into the Telegram
// bot. Only the bcrypt hash is stored; the plaintext exists once, in this
// response.
func (s *Service) GenerateLinkCode(ctx context.Context) (string, time.Time, error) {
	patronID := requestcontext.PatronID(ctx)
	if patronID.IsNil() {
		return "", time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "no patron in context")
	}

	raw := make([]byte, linkCodeBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate link code")
	}
	code := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash link code")
	}

	expiresAt := time.Now().UTC().Add(linkCodeTTL)
	err = s.codes.SaveLinkCode(ctx, &store.LinkCode{
		PatronID:  patronID,
		CodeHash:  hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store link code")
	}

	s.metrics.IncrementLinkCode("issued")
	return code, expiresAt, nil
}

// RedeemLinkCode burns a presented code and binds the Telegram chat to the
// matching patron. Unknown, expired, and reused codes are indistinguishable
// to the caller.
func (s *Service) RedeemLinkCode(ctx context.Context, code string, chatID int64) (*patronmodels.Patron, error) {
	if code == "" || chatID == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "code and chat_id are required")
	}

	pending, err := s.codes.ListPendingLinkCodes(ctx, time.Now().UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list link codes")
	}

	for _, candidate := range pending {
		if bcrypt.CompareHashAndPassword(candidate.CodeHash, []byte(code)) != nil {
			continue
		}
		if err := s.codes.MarkLinkCodeUsed(ctx, candidate.PatronID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn link code")
		}

		patron, err := s.patrons.LinkTelegramChat(ctx, candidate.PatronID, chatID)
		if err != nil {
			return nil, err
		}

		s.metrics.IncrementLinkCode("redeemed")
		s.logger.InfoContext(ctx, "telegram chat linked",
			"request_id", requestcontext.RequestID(ctx),
			"patron_id", patron.ID)
		s.notifyLinked(ctx, patron)
		return patron, nil
	}

	s.metrics.IncrementLinkCode("rejected")
	return nil, dErrors.New(dErrors.CodeNotFound, "invalid or expired link code")
}

func (s *Service) notifyLinked(ctx context.Context, patron *patronmodels.Patron) {
	if s.telegram == nil {
		return
	}
	text := fmt.Sprintf("Hi %s, your LibriPal account is now linked to this chat.", patron.FirstName)
	if err := s.telegram.SendMessage(ctx, patron.TelegramChatID, text); err != nil {
		s.logger.WarnContext(ctx, "failed to send link confirmation",
			"request_id", requestcontext.RequestID(ctx),
			"patron_id", patron.ID,
			"error", err)
	}
}
