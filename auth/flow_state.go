package auth

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Stage names the authorization states a grant moves through.
type Stage string

const (
	StageNoGrant      Stage = "no_grant"
	StageAwaitingCode Stage = "awaiting_code"
	StageHaveCode     Stage = "have_code"
	StageHaveTokens   Stage = "have_tokens"
)

// FlowState is the per-attempt data of one interactive authorization. It lives only for the
// duration of a single Authorize call.
type FlowState struct {
	State        string
	CodeVerifier string // empty when PKCE is disabled
	CreatedAt    time.Time
}

func newFlowState(now time.Time, pkce bool) FlowState {
	fs := FlowState{
		State:     uuid.NewString(),
		CreatedAt: now,
	}
	if pkce {
		fs.CodeVerifier = oauth2.GenerateVerifier()
	}
	return fs
}

func (fs FlowState) authCodeOptions() []oauth2.AuthCodeOption {
	if fs.CodeVerifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(fs.CodeVerifier)}
}

func (fs FlowState) exchangeOptions() []oauth2.AuthCodeOption {
	if fs.CodeVerifier == "" {
		return nil
	}
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(fs.CodeVerifier)}
}
