// Command admin manages staff and superuser accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin createsuperuser <email> <password> [username]  - Create a superuser")
	fmt.Println("  admin promote <user_id>                               - Grant staff status")
	fmt.Println("  admin demote <user_id>                                - Revoke staff status")
	fmt.Println("  admin list-staff                                      - List staff accounts")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	users := service.NewUserService(repository.NewUserRepository(db), nil)
	ctx := context.Background()

	switch os.Args[1] {
	case "createsuperuser":
		if len(os.Args) < 4 {
			usage()
		}
		in := service.CreateUserInput{Email: os.Args[2], Password: os.Args[3]}
		if len(os.Args) > 4 {
			in.Username = os.Args[4]
		}
		user, err := users.CreateSuperuser(ctx, in)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Created superuser %s (ID: %d)\n", user.Email, user.ID)

	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid user ID %q", os.Args[2])
		}
		user, err := users.SetStaff(ctx, uint(id), os.Args[1] == "promote")
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s (ID: %d) staff=%t\n", user.Email, user.ID, user.IsStaff)

	case "list-staff":
		staff, err := users.ListStaff(ctx)
		if err != nil {
			fail(err)
		}
		if len(staff) == 0 {
			fmt.Println("No staff accounts found")
			return
		}
		for _, u := range staff {
			fmt.Printf("  ID: %d  %s  username=%s superuser=%t\n", u.ID, u.Email, u.UsernameOrEmpty(), u.IsSuperuser)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
	}
}

func fail(err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Fields != nil {
		for field, msgs := range appErr.Fields {
			for _, msg := range msgs {
				fmt.Printf("  %s: %s\n", field, msg)
			}
		}
		os.Exit(1)
	}
	log.Fatalf("Error: %v", err)
}
