package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"symptom-triage/internal/screening"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, data []byte, fileName, caption string) error
}

// Service renders screening reports and delivers them to the doctor chat.
type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	now          func() time.Time
	render       func(Summary) ([]byte, error)
}

// NewService returns a report service. tg may be nil, which disables delivery.
func NewService(tg TelegramClient, doctorChatID int64) *Service {
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		now:          time.Now,
		render:       Render,
	}
}

func (s *Service) RenderSession(sessionID string, sess screening.Session) ([]byte, error) {
	return s.render(NewSummary(sessionID, sess, s.now()))
}

// NotifyDoctor sends the session's report to the doctor chat.
func (s *Service) NotifyDoctor(ctx context.Context, sessionID string, sess screening.Session) error {
	return s.SendDoctorReport(ctx, NewSummary(sessionID, sess, s.now()))
}

func (s *Service) SendDoctorReport(ctx context.Context, sum Summary) error {
	if s.tgClient == nil || s.doctorChatID == 0 {
		return nil
	}
	log := zerolog.Ctx(ctx)

	caption := fmt.Sprintf("Screening %s: %s (%s confidence). Patient was advised to see a doctor.",
		sum.SessionID, sum.Diagnosis.Diagnosis, sum.Diagnosis.Confidence)

	pdf, err := s.render(sum)
	if err != nil {
		// The doctor still gets the verdict as plain text.
		log.Error().Err(err).Str("session_id", sum.SessionID).Msg("failed to render report")
		if err := s.tgClient.SendMessage(ctx, s.doctorChatID, caption+"\n\n"+sum.Text()); err != nil {
			return fmt.Errorf("send report text: %w", err)
		}
		return nil
	}

	fileName := fmt.Sprintf("report_%s.pdf", sum.SessionID)

	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, pdf, fileName, caption); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	log.Info().Str("session_id", sum.SessionID).Int64("chat_id", s.doctorChatID).Msg("doctor report sent")
	return nil
}
