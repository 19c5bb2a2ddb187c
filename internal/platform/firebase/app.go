package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/diagnosis/reservou/pkg/config"
	"google.golang.org/api/option"
)

// Enabled reports whether enough settings exist to initialise the app.
func Enabled(cfg config.FirebaseConfig) bool {
	return cfg.ProjectID != ""
}

// NewApp builds the Firebase app. Without a credentials file the
// application default credentials are used.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}
