// Command admin manages moderator roles and issues development tokens.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"lionboard/internal/config"
	"lionboard/internal/database"
	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/repository"
	"lionboard/internal/service"

	"golang.org/x/crypto/bcrypt"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin set-role <email> <student|moderator|staff|admin>  - Change a user's role")
	fmt.Println("  admin list-moderators                                  - List moderating accounts")
	fmt.Println("  admin create-admin <email> <username> <password>       - Create an admin account")
	fmt.Println("  admin token <user_id>                                  - Print a 24h API token")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	roles := service.NewRoleService(users, cfg.ModeratorEmailList())

	switch os.Args[1] {
	case "set-role":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		user, err := roles.SetRole(ctx, os.Args[2], models.Role(os.Args[3]))
		if err != nil {
			log.Fatalf("Failed to set role: %v", err)
		}
		fmt.Printf("Set %s (ID: %d) to %s\n", user.Email, user.ID, user.Role)

	case "list-moderators":
		mods, err := roles.Moderators(ctx)
		if err != nil {
			log.Fatalf("Failed to list moderators: %v", err)
		}
		if len(mods) == 0 {
			fmt.Println("No moderators found")
			return
		}
		for _, u := range mods {
			fmt.Printf("%-6d %-10s %s\n", u.ID, u.Role, u.Email)
		}

	case "create-admin":
		if len(os.Args) < 5 {
			usage()
			os.Exit(1)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[4]), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		user := &models.User{
			Email:        os.Args[2],
			Username:     os.Args[3],
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
		}
		if err := users.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create admin: %v", err)
		}
		fmt.Printf("Created admin %s (ID: %d)\n", user.Email, user.ID)

	case "token":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			log.Fatalf("Invalid user id %q", os.Args[2])
		}
		if _, err := users.GetByID(ctx, uint(id)); err != nil {
			log.Fatalf("Failed to load user: %v", err)
		}
		token, err := middleware.GenerateToken(cfg.JWTSecret, uint(id), 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(token)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}
