package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sushihentaime/quillpost/internal/commentservice"
	"github.com/sushihentaime/quillpost/internal/common"
	"github.com/sushihentaime/quillpost/internal/mailservice"
	"github.com/sushihentaime/quillpost/internal/postservice"
	"github.com/sushihentaime/quillpost/internal/userservice"
)

type application struct {
	config         *Config
	logger         *slog.Logger
	db             *sql.DB
	location       *time.Location
	userService    *userservice.UserService
	postService    *postservice.PostService
	commentService *commentservice.CommentService
	mailService    *mailservice.MailService
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc, err := cfg.location()
	if err != nil {
		logger.Error("invalid timezone", slog.String("timezone", cfg.Timezone), slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBMaxIdleTime)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	err = common.Migrate(db, cfg.MigrationsPath)
	if err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.MQUser, cfg.MQPassword, cfg.MQHost, cfg.MQPort)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	err = common.SetupUserExchange(broker)
	if err != nil {
		logger.Error("failed to setup the user exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = common.SetupPostExchange(broker)
	if err != nil {
		logger.Error("failed to setup the post exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := common.NewCache(5*time.Minute, 10*time.Minute)

	app := &application{
		config:         cfg,
		logger:         logger,
		db:             db,
		location:       loc,
		userService:    userservice.NewUserService(db, broker, cache),
		postService:    postservice.NewPostService(db, cache, loc),
		commentService: commentservice.NewCommentService(db, broker, logger),
		mailService:    mailservice.NewMailService(broker, cfg.MailHost, cfg.MailUser, cfg.MailPassword, cfg.MailSender, cfg.MailPort, logger),
	}
	if cfg.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = app.userService.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			logger.Error("failed to bootstrap the admin account", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	err = app.mailService.SendWelcomeEmail()
	if err != nil {
		logger.Error("failed to consume user events", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = app.mailService.SendCommentNotification()
	if err != nil {
		logger.Error("failed to consume comment events", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = app.serve()
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
