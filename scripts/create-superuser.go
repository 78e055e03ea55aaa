package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/service"
)

type output struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Superuser email")
		password    = flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "Superuser password (or SUPERUSER_PASSWORD)")
		name        = flag.String("name", "", "Display name")
		migrate     = flag.Bool("migrate", false, "Apply pending migrations first")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password (or SUPERUSER_PASSWORD) are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if *migrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	tokens := service.NewTokenService(repo, repo, nil, service.TokenConfig{}, nil)
	users := service.NewUserService(repo, tokens, nil)

	user, err := users.CreateSuperuser(ctx, *email, *password, *name)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			for field, msgs := range verr.Fields {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, strings.Join(msgs, " "))
			}
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "create superuser:", err)
		os.Exit(1)
	}

	out := output{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.UserID)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
