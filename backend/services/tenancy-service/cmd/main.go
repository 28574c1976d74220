package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata" // Load timezone data

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/app"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/config"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/controllers"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/routes"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-middleware"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-seeding"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize the application:", err)
	}
	defer application.Close()

	// Repositories. Principals and companies live in the identity store,
	// condominiums, units and the audit trail in the tenancy store.
	principalRepo := repositories.NewPrincipalRepository(application.IdentityDB)
	companyRepo := repositories.NewCompanyRepository(application.IdentityDB)
	condoRepo := repositories.NewCondominiumRepository(application.TenancyDB)
	unitRepo := repositories.NewUnitRepository(application.TenancyDB)
	auditRepo := repositories.NewAuditLogRepository(application.TenancyDB)
	signInRepo := repositories.NewSignInAttemptsRepository(application.IdentityDB)

	if cfg.LDFlag_SeedPlatformAdmin {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := seeding.SeedPlatformAdmin(seedCtx, principalRepo, cfg.PlatformAdminEmail, cfg.PlatformAdminPassword, services.SystemClock())
		seedCancel()
		if err != nil {
			utils.Logger.Fatal("Failed to seed platform admin:", err)
		}
	}

	// Notifications
	router := &notify.Router{Email: notify.LogSender{}, SMS: notify.LogSender{}}
	if cfg.SendgridAPIKey != "" {
		router.Email = notify.NewSendGridSender(cfg.SendgridAPIKey, cfg.OrganizationName, cfg.SendgridFromEmail, cfg.LDFlag_SendgridSandboxMode)
	}
	var phone services.PhoneValidator
	if cfg.TwilioAccountSID != "" {
		twilioSender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromPhone)
		router.SMS = twilioSender
		if cfg.LDFlag_ValidatePhoneWithTwilio {
			phone = func(ctx context.Context, number string) (bool, error) {
				return utils.ValidatePhoneNumber(ctx, number, twilioSender.Client())
			}
		}
	}
	dispatcher := notify.NewDispatcher(router, cfg.LDFlag_AsyncNotifications)
	defer dispatcher.Wait()

	// Services
	signInPolicy := services.SignInPolicy{
		MaxAttempts: cfg.MaxSignInAttempts,
		Window:      cfg.SignInAttemptWindow,
		LockFor:     cfg.SignInLockDuration,
	}
	deps := services.Deps{
		Principals:   principalRepo,
		Companies:    companyRepo,
		Condominiums: condoRepo,
		Units:        unitRepo,
		AuditLogs:    auditRepo,
		SignIns:      signInRepo,
		SignInPolicy: signInPolicy,
		Notifier:     dispatcher,
		Phone:        phone,
		AppURL:       cfg.AppUrl,
		Clock:        services.SystemClock,
	}
	authzService := services.NewAuthzService(deps)
	accountService := services.NewAccountService(deps)
	tenancyService := services.NewTenancyService(deps, authzService)
	assignmentService := services.NewAssignmentService(deps, authzService)
	lifecycleService := services.NewLifecycleService(deps, authzService)
	reconcilerService := services.NewReconcilerService(deps, lifecycleService)
	signInCleanupService := services.NewSignInCleanupService(deps)

	// Controllers
	healthController := controllers.NewHealthController(application)
	accountController := controllers.NewAccountController(accountService, authzService, controllers.TokenSigner{
		PrivateKey: cfg.RSAPrivateKey,
		TTL:        cfg.AccessTokenTTL,
		Now:        services.SystemClock,
	})
	tenancyController := controllers.NewTenancyController(tenancyService, authzService)
	assignmentController := controllers.NewAssignmentController(assignmentService, authzService)
	lifecycleController := controllers.NewLifecycleController(lifecycleService, reconcilerService, authzService)

	// Consistency reconciler via cron
	c := cron.New(cron.WithLocation(time.UTC))
	if cfg.LDFlag_ConsistencyReconcilerEnabled {
		_, schErr := c.AddFunc(cfg.ReconcilerSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			report, err := reconcilerService.Run(ctx)
			if err != nil {
				utils.Logger.WithError(err).Error("Scheduled consistency reconciliation failed")
				return
			}
			utils.Logger.WithField("report", report).Info("Scheduled consistency reconciliation finished")
		})
		if schErr != nil {
			utils.Logger.WithError(schErr).Fatal("Failed to schedule consistency reconciler")
		}
	}
	_, schErr := c.AddFunc(config.SignInCleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := signInCleanupService.CleanupDaily(ctx); err != nil {
			utils.Logger.WithError(err).Error("Scheduled sign-in attempt cleanup failed")
		}
	})
	if schErr != nil {
		utils.Logger.WithError(schErr).Fatal("Failed to schedule sign-in attempt cleanup")
	}
	c.Start()
	defer c.Stop()

	// Router
	r := mux.NewRouter()

	// Health
	r.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	r.Handle(routes.Metrics, metrics.Handler()).Methods(http.MethodGet)

	// Public account routes
	r.HandleFunc(routes.AccountRegister, accountController.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc(routes.AccountConfirmEmail, accountController.ConfirmEmailHandler).Methods(http.MethodPost)
	r.HandleFunc(routes.AccountSignIn, accountController.SignInHandler).Methods(http.MethodPost)

	// Protected routes (JWT middleware)
	secured := r.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	secured.HandleFunc(routes.AccountMe, accountController.MeHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.AccountChangePassword, accountController.ChangePasswordHandler).Methods(http.MethodPost)

	// Hierarchy
	secured.HandleFunc(routes.Companies, tenancyController.CreateCompanyHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Companies, tenancyController.ListCompaniesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Company, tenancyController.UpdateCompanyHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.Company, lifecycleController.SoftDeleteCompanyHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.CompanyRestore, lifecycleController.RestoreCompanyHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.Condominiums, tenancyController.CreateCondominiumHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Condominiums, tenancyController.ListCondominiumsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Condominium, tenancyController.UpdateCondominiumHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.Condominium, lifecycleController.SoftDeleteCondominiumHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.CondominiumRestore, lifecycleController.RestoreCondominiumHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.CondominiumUnits, tenancyController.ListUnitsHandler).Methods(http.MethodGet)

	secured.HandleFunc(routes.Units, tenancyController.CreateUnitHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Unit, tenancyController.UpdateUnitHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.Unit, lifecycleController.SoftDeleteUnitHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.UnitRestore, lifecycleController.RestoreUnitHandler).Methods(http.MethodPost)

	// Principals
	secured.HandleFunc(routes.Principals, tenancyController.ListPrincipalsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Principal, tenancyController.GetPrincipalHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.PrincipalDeactivate, lifecycleController.DeactivatePrincipalHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PrincipalReactivate, lifecycleController.ReactivatePrincipalHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Managers, assignmentController.CreateManagerHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Staff, assignmentController.CreateStaffHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Owners, assignmentController.CreateOwnerHandler).Methods(http.MethodPost)

	// Assignments
	secured.HandleFunc(routes.AssignManager, assignmentController.AssignManagerHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.DismissManager, assignmentController.DismissManagerHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.AssignOwner, assignmentController.AssignOwnerHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnassignOwner, assignmentController.UnassignOwnerHandler).Methods(http.MethodPost)

	// Audit and maintenance
	secured.HandleFunc(routes.AuditTrail, tenancyController.ListAuditTrailHandler).Methods(http.MethodGet)
	admin := secured.NewRoute().Subrouter()
	admin.Use(middleware.RequireAnyRole(string(models.RolePlatformAdmin)))
	admin.HandleFunc(routes.Reconcile, lifecycleController.ReconcileHandler).Methods(http.MethodPost)

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}

	// CORS config
	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: co.Handler(r)}
	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("Failed to start server:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.WithError(err).Error("Graceful shutdown failed")
	}
	utils.Logger.Info("Server stopped; draining notifications.")
}
