//go:build wireinject

package app

import (
	"log/slog"

	"github.com/google/wire"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/http/handler"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
	"github.com/sandeepkv93/tenant-session-core/internal/service"
)

var infraSet = wire.NewSet(
	provideDB,
	provideRedis,
	provideUserLocker,
	providePublisher,
	provideEmailSender,
	provideDispatcher,
	wire.Bind(new(service.AsyncRunner), new(*notify.Dispatcher)),
	provideClientParser,
	provideIDCodec,
	provideDigester,
)

var repositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewMembershipRepository,
	repository.NewRefreshCredentialRepository,
	repository.NewSessionRepository,
	repository.NewDeviceRepository,
	repository.NewSecurityEventRepository,
	repository.NewAuditLogRepository,
)

var serviceSet = wire.NewSet(
	provideJWTManager,
	wire.Bind(new(service.TokenIssuer), new(*security.JWTManager)),
	provideHasher,
	provideAuditService,
	provideSessionService,
	provideDeviceService,
	provideTokenService,
	provideAuthService,
)

var httpSet = wire.NewSet(
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SessionServiceInterface), new(*service.SessionService)),
	wire.Bind(new(service.DeviceServiceInterface), new(*service.DeviceService)),
	wire.Bind(new(service.SecurityAuditReader), new(*service.SecurityAuditService)),
	wire.Bind(new(handler.SelectionTokens), new(*security.JWTManager)),
	handler.NewAuthHandler,
	handler.NewUserHandler,
	provideReadiness,
	provideRouter,
	provideHTTPServer,
)

func InitializeApp(cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, func(), error) {
	wire.Build(infraSet, repositorySet, serviceSet, httpSet, New)
	return nil, nil, nil
}

func InitializeSessionJanitor(cfg *config.Config, logger *slog.Logger) (*SessionJanitor, func(), error) {
	wire.Build(
		provideDB,
		provideRedis,
		provideUserLocker,
		provideIDCodec,
		provideDigester,
		repository.NewSessionRepository,
		repository.NewSecurityEventRepository,
		repository.NewAuditLogRepository,
		provideAuditService,
		provideSessionService,
		NewSessionJanitor,
	)
	return nil, nil, nil
}
