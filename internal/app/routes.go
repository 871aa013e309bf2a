package app

import (
	"net/http"

	"github.com/trustbond/api/internal/handler"
	"github.com/trustbond/api/internal/middleware"
	"github.com/trustbond/api/internal/models"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	mid := middleware.New(app.errorHandler, app.Logger, app.DB.User(), &app.Config)

	healthHandler := handler.NewHealthCheckHandler(&handler.HealthCheckHandler{
		Mode:    app.Config.Mode,
		ChainID: app.Config.Chain.DefaultID,
		Dependencies: map[string]handler.Pinger{
			"database": app.DB,
			"cache":    app.Cache,
		},
		Logger:     app.Logger,
		ErrHandler: app.errorHandler,
	})

	authHandler := handler.NewAuthHandler(&handler.AuthHandler{
		DB:           app.DB,
		UserRepo:     app.DB.User(),
		RoleRepo:     app.DB.RoleAssignment(),
		ActivityRepo: app.DB.Activity(),
		Helper:       app.helper,
		Mailer:       app.Mailer,
		Config:       &app.Config,
		ErrHandler:   app.errorHandler,
	})

	userHandler := handler.NewUserHandler(&handler.UserHandler{
		UserRepo:     app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Trust:        app.Trust,
		Helper:       app.helper,
		ErrHandler:   app.errorHandler,
	})

	walletHandler := handler.NewWalletHandler(&handler.WalletHandler{
		Wallets:      app.Wallets,
		UserRepo:     app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Helper:       app.helper,
		ErrHandler:   app.errorHandler,
	})

	transactionHandler := handler.NewTransactionHandler(&handler.TransactionHandler{
		Tracker:         app.Tracker,
		TransactionRepo: app.DB.Transaction(),
		Publisher:       app.Kafka,
		Hub:             app.Hub,
		DefaultChainID:  app.Config.Chain.DefaultID,
		Helper:          app.helper,
		ErrHandler:      app.errorHandler,
	})

	kycHandler := handler.NewKYCHandler(&handler.KYCHandler{
		DB:           app.DB,
		KYCRepo:      app.DB.KYCSubmission(),
		UserRepo:     app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Uploader:     app.FileUploader,
		Verifier:     app.Contracts,
		Publisher:    app.Kafka,
		Hub:          app.Hub,
		Helper:       app.helper,
		ErrHandler:   app.errorHandler,
		Logger:       app.Logger,
	})

	loanHandler := handler.NewLoanHandler(&handler.LoanHandler{
		LoanRepo:     app.DB.Loan(),
		ActivityRepo: app.DB.Activity(),
		LoanManager:  app.Contracts,
		Publisher:    app.Kafka,
		Hub:          app.Hub,
		Helper:       app.helper,
		ErrHandler:   app.errorHandler,
	})

	adminHandler := handler.NewAdminHandler(&handler.AdminHandler{
		UserRepo:   app.DB.User(),
		RoleRepo:   app.DB.RoleAssignment(),
		ErrHandler: app.errorHandler,
	})

	authed := mid.RequireAuthenticatedUser
	borrower := mid.RequireRole(models.RoleUser)
	staff := mid.RequireRole(models.RoleBank, models.RoleAdmin)
	admin := mid.RequireRole(models.RoleAdmin)

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)
	mux.HandleFunc("GET /networks", walletHandler.HandleNetworks)

	// auth
	mux.HandleFunc("POST /auth/register", authHandler.HandleAuthRegister)
	mux.HandleFunc("POST /auth/login", authHandler.HandleAuthLogin)

	// profile
	mux.Handle("GET /users/me", authed(http.HandlerFunc(userHandler.HandleMe)))
	mux.Handle("PATCH /users/me", authed(http.HandlerFunc(userHandler.HandleUpdateMe)))
	mux.Handle("GET /users/me/trust-score", authed(http.HandlerFunc(userHandler.HandleTrustScore)))
	mux.Handle("GET /users/me/activity", authed(http.HandlerFunc(userHandler.HandleListActivity)))

	// wallet connection
	mux.Handle("GET /wallet", authed(http.HandlerFunc(walletHandler.HandleGetWallet)))
	mux.Handle("POST /wallet/connect", authed(http.HandlerFunc(walletHandler.HandleConnect)))
	mux.Handle("POST /wallet/approve", authed(http.HandlerFunc(walletHandler.HandleApprove)))
	mux.Handle("POST /wallet/reject", authed(http.HandlerFunc(walletHandler.HandleReject)))
	mux.Handle("POST /wallet/network", authed(http.HandlerFunc(walletHandler.HandleNetworkChanged)))
	mux.Handle("POST /wallet/switch", authed(http.HandlerFunc(walletHandler.HandleSwitchNetwork)))
	mux.Handle("POST /wallet/disconnect", authed(http.HandlerFunc(walletHandler.HandleDisconnect)))

	// transaction tracking
	mux.Handle("POST /transactions", authed(http.HandlerFunc(transactionHandler.HandleSubmitTransaction)))
	mux.Handle("GET /transactions", authed(http.HandlerFunc(transactionHandler.HandleListTransactions)))
	mux.Handle("DELETE /transactions", authed(http.HandlerFunc(transactionHandler.HandleClearTransactions)))
	mux.Handle("GET /transactions/events", authed(http.HandlerFunc(transactionHandler.HandleTransactionEvents)))
	mux.Handle("GET /transactions/{hash}", authed(http.HandlerFunc(transactionHandler.HandleGetTransaction)))

	// kyc
	mux.Handle("POST /kyc/submissions", borrower(http.HandlerFunc(kycHandler.HandleSubmitKYC)))
	mux.Handle("GET /kyc/submissions", authed(http.HandlerFunc(kycHandler.HandleListOwnKYC)))
	mux.Handle("GET /kyc/submissions/pending", staff(http.HandlerFunc(kycHandler.HandleListPendingKYC)))
	mux.Handle("POST /kyc/submissions/{id}/verify", staff(http.HandlerFunc(kycHandler.HandleVerifyKYC)))
	mux.Handle("POST /kyc/submissions/{id}/reject", staff(http.HandlerFunc(kycHandler.HandleRejectKYC)))
	mux.Handle("GET /kyc/status/{address}", authed(http.HandlerFunc(kycHandler.HandleKYCStatus)))

	// loans
	mux.Handle("POST /loans", borrower(http.HandlerFunc(loanHandler.HandleApplyLoan)))
	mux.Handle("GET /loans", authed(http.HandlerFunc(loanHandler.HandleListLoans)))
	mux.Handle("GET /loans/{id}", authed(http.HandlerFunc(loanHandler.HandleGetLoan)))
	mux.Handle("POST /loans/{id}/approve", staff(http.HandlerFunc(loanHandler.HandleApproveLoan)))
	mux.Handle("POST /loans/{id}/reject", staff(http.HandlerFunc(loanHandler.HandleRejectLoan)))
	mux.Handle("POST /loans/{id}/fund", staff(http.HandlerFunc(loanHandler.HandleFundLoan)))
	mux.Handle("POST /loans/{id}/default", staff(http.HandlerFunc(loanHandler.HandleDefaultLoan)))
	mux.Handle("POST /loans/{id}/repay", borrower(http.HandlerFunc(loanHandler.HandleRepayLoan)))
	mux.Handle("GET /loans/chain/{loanId}", authed(http.HandlerFunc(loanHandler.HandleOnChainLoanStatus)))

	// admin
	mux.Handle("GET /admin/users", admin(http.HandlerFunc(adminHandler.HandleListUsers)))
	mux.Handle("GET /admin/role-assignments", admin(http.HandlerFunc(adminHandler.HandleListRoleAssignments)))

	return mid.LogAccess(mid.RecoverPanic(mid.RateLimit(mid.Authenticate(mux))))
}
