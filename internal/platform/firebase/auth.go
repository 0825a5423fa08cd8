package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	mw "github.com/fatflowers/matchday/internal/app/api/middleware"
	cfgpkg "github.com/fatflowers/matchday/pkg/config"
)

// AdminClaim is the custom claim that grants admin routes.
const AdminClaim = "admin"

// Verifier checks Firebase ID tokens.
type Verifier struct {
	client *auth.Client
}

// New returns a nil verifier unless auth.mode is firebase.
func New(l *zap.SugaredLogger, cfg *cfgpkg.Config) (mw.TokenVerifier, error) {
	if cfg.Auth.Mode != cfgpkg.AuthModeFirebase {
		l.Warnw("firebase auth disabled, trusting identity headers", "mode", cfg.Auth.Mode)
		return nil, nil
	}
	if cfg.Auth.FirebaseProjectID == "" {
		return nil, fmt.Errorf("auth.firebase_project_id must be set in firebase mode")
	}
	var opts []option.ClientOption
	if cfg.Auth.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Auth.CredentialsFile))
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Auth.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	l.Infow("firebase auth enabled", "project_id", cfg.Auth.FirebaseProjectID)
	return &Verifier{client: client}, nil
}

func (v *Verifier) VerifyToken(ctx context.Context, raw string) (*mw.Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	return identityFromClaims(token.UID, token.Claims), nil
}

func identityFromClaims(uid string, claims map[string]interface{}) *mw.Identity {
	admin, _ := claims[AdminClaim].(bool)
	return &mw.Identity{UserID: uid, Admin: admin}
}

var Module = fx.Options(
	fx.Provide(New),
)
