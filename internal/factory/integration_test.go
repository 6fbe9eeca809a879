package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/gambitchess/gambit/internal/model"
	"github.com/gambitchess/gambit/internal/relay"
	"github.com/gambitchess/gambit/internal/services/auth"
	"github.com/gambitchess/gambit/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

// Test: full flow from guest accounts through relay to a recorded verdict
func (s *IntegrationSuite) TestCompleteSessionFlow() {
	// Setup: queue random values for guest names and user IDs
	s.app.MockRandom.QueueString("whitenm1", "whiteid01234", "blacknm1", "blackid01234")

	// Step 1: Two guests authenticate
	white, err := s.app.AuthService.Guest(s.ctx)
	s.Require().NoError(err)
	s.Equal("guest_whitenm1", white.User.Username)

	black, err := s.app.AuthService.Guest(s.ctx)
	s.Require().NoError(err)

	// Step 2: Tokens round-trip through verification
	verified, err := s.app.AuthService.Verify(s.ctx, white.Token)
	s.Require().NoError(err)
	s.Equal(white.User.ID, verified.ID)

	// Step 3: White creates a session, black joins
	sess, err := s.app.SessionController.Create(s.ctx, white.User.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusWaiting, sess.Status)

	sess, err = s.app.SessionController.Join(s.ctx, sess.ID, black.User.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusInProgress, sess.Status)

	// Step 4: Both connect to the relay
	whiteClient := relay.NewClient(s.app.Hub, nil, sess.ID, white.User.ID, testutil.NopLogger())
	blackClient := relay.NewClient(s.app.Hub, nil, sess.ID, black.User.ID, testutil.NopLogger())
	s.Require().NoError(s.app.Hub.Register(s.ctx, whiteClient))
	s.Require().NoError(s.app.Hub.Register(s.ctx, blackClient))
	s.Equal(2, s.app.Hub.ClientCount(sess.ID))

	// Step 5: Moves flow through the store
	s.app.MockClock.Advance(time.Minute)
	sess, err = s.app.SessionController.SubmitMove(s.ctx, sess.ID, white.User.ID, "e2", "e4", "P")
	s.Require().NoError(err)
	s.Require().Len(sess.Moves, 1)
	s.Equal(s.app.MockClock.Now(), sess.Moves[0].PlayedAt)

	sess, err = s.app.SessionController.SubmitMove(s.ctx, sess.ID, black.User.ID, "e7", "e5", "P")
	s.Require().NoError(err)
	s.Len(sess.Moves, 2)

	// Step 6: Black resigns; white wins
	sess, err = s.app.SessionController.Resign(s.ctx, sess.ID, black.User.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusCompleted, sess.Status)
	s.Require().NotNil(sess.Verdict)
	s.Equal(white.User.ID, sess.Verdict.Winner)

	// Step 7: The durable log survives as the system of record
	final, err := s.app.SessionController.Get(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusCompleted, final.Status)
	s.Len(final.Moves, 2)

	// A reconnecting client still registers against the completed session
	lateClient := relay.NewClient(s.app.Hub, nil, sess.ID, black.User.ID, testutil.NopLogger())
	s.Require().NoError(s.app.Hub.Register(s.ctx, lateClient))
}

// Test: expired tokens are rejected once the clock advances past the TTL
func (s *IntegrationSuite) TestTokenExpiry() {
	s.app.MockRandom.QueueString("guestnm1", "guestid01234")

	guest, err := s.app.AuthService.Guest(s.ctx)
	s.Require().NoError(err)

	s.app.MockClock.Advance(auth.DefaultConfig().TokenTTL + time.Minute)

	_, err = s.app.AuthService.Verify(s.ctx, guest.Token)
	s.ErrorIs(err, auth.ErrInvalidToken)
}
