package main

import (
	"fmt"
	"os"

	"github.com/podlens/podlens/internal/config"
	"github.com/podlens/podlens/internal/db"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the reporting store.
// When promptPassword is set the store password is read from the terminal
// instead of the config file.
func connectFromConfig(configPath string, promptPassword bool) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	password := cfg.Store.Password
	if promptPassword {
		password, err = readPassword(fmt.Sprintf("Password for %s@%s: ", cfg.Store.User, cfg.Store.Host))
		if err != nil {
			return nil, nil, err
		}
	}

	gormDB, err := db.Connect(cfg.Store.User, password, cfg.Store.Host, cfg.Store.Port, cfg.Store.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// readPassword reads a password from the terminal without echo.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
