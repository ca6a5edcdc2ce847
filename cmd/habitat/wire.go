package main

import (
	"errors"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/logging"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/mqtt"
	"github.com/LeaderSteve84/habitatT-backend/internal/notify"
)

// authCore holds the auth components shared by the API server.
type authCore struct {
	service     *auth.Service
	guard       *auth.Guard
	revocations *auth.RevocationRegistry
	resets      *auth.ResetTokenStore
}

// newNotifier picks the notification transport. The mqtt transport needs a
// connected client.
func newNotifier(cfg config.NotifyConfig, client *mqtt.Client, log *logging.Logger) (auth.Notifier, error) {
	switch cfg.Transport {
	case "mqtt":
		if client == nil {
			return nil, errors.New("notify transport mqtt requires an MQTT connection")
		}
		topic := cfg.Topic
		if topic == "" {
			topic = mqtt.Topics{}.Notify("email")
		}
		log.Info("notifications published to MQTT", "topic", topic)
		return notify.NewMQTTNotifier(client, topic, cfg.From), nil
	default:
		log.Warn("notifications are written to the log; reset links will appear in log output")
		return notify.NewLogNotifier(log.With("component", "notify").Logger), nil
	}
}

// newAuthCore builds the credential store, token issuer, revocation
// registry, reset store, guard and service. events may be nil.
func newAuthCore(cfg *config.Config, repo auth.PrincipalRepository, notifier auth.Notifier, events auth.EventRecorder, log *logging.Logger) (*authCore, error) {
	authLog := log.With("component", "auth").Logger

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:      []byte(cfg.Security.JWT.Secret),
		Issuer:      cfg.Security.JWT.Issuer,
		DefaultTTL:  cfg.GetAccessTokenTTL(),
		ExtendedTTL: cfg.GetExtendedTokenTTL(),
	})
	if err != nil {
		return nil, err
	}

	revocations := auth.NewRevocationRegistry(nil)
	resets := auth.NewResetTokenStore(cfg.GetResetTokenTTL(), nil)
	guard := auth.NewGuard(issuer, revocations, cfg.Security.Cookie.Name)

	deps := auth.ServiceDeps{
		Credentials: auth.NewCredentialStore(repo, authLog),
		Tokens:      issuer,
		Guard:       guard,
		Resets:      resets,
		Notifier:    notifier,
		Events:      events,
		Logger:      authLog,
	}

	svc, err := auth.NewService(deps, auth.ServiceConfig{
		LinkBaseURL:        cfg.Security.Reset.LinkBaseURL,
		RevealUnknownEmail: cfg.Security.Reset.RevealUnknownEmail,
		MinPasswordLength:  cfg.Security.Reset.MinPasswordLength,
	})
	if err != nil {
		return nil, err
	}

	return &authCore{
		service:     svc,
		guard:       guard,
		revocations: revocations,
		resets:      resets,
	}, nil
}
