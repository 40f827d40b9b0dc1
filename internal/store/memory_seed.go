package store

import (
	"fmt"

	"github.com/upbank/core-service/internal/domain"
)

// DemoPassword is the password of every seeded login.
const DemoPassword = "upbank123"

type demoClient struct {
	firstName string
	lastName  string
	email     string
	username  string
	role      domain.Role
	accounts  []domain.Account
}

var demoClients = []demoClient{
	{
		firstName: "Administrador", lastName: "UPBANK", email: "admin@upbank.mx",
		username: "admin", role: domain.RoleAdmin,
	},
	{
		firstName: "Ana", lastName: "López", email: "ana.lopez@example.mx",
		username: "ana", role: domain.RoleCustomer,
		accounts: []domain.Account{
			{AccountNumber: "ACC100001", Clabe: "012180001000010001", Balance: 1500000},
		},
	},
	{
		firstName: "Carlos", lastName: "Hernández", email: "carlos.hernandez@example.mx",
		username: "carlos", role: domain.RoleCustomer,
		accounts: []domain.Account{
			{AccountNumber: "ACC100002", Clabe: "012180001000020002", Balance: 250050},
			{AccountNumber: "ACC100003", Clabe: "012180001000030003", Balance: 0},
		},
	},
	{
		firstName: "María", lastName: "García", email: "maria.garcia@example.mx",
		username: "maria", role: domain.RoleCustomer,
		accounts: []domain.Account{
			{AccountNumber: "ACC100004", Clabe: "012180001000040004", Balance: 98000, Status: domain.AccountFrozen},
		},
	},
}

// SeedDemoData fills an empty memory store with the demo clients, logins and accounts.
// hashPassword is called once per login with DemoPassword.
func SeedDemoData(r *MemoryRepository, hashPassword func(string) (string, error)) error {
	for _, demo := range demoClients {
		client := r.AddClient(domain.Client{FirstName: demo.firstName, LastName: demo.lastName, Email: demo.email})

		hash, err := hashPassword(DemoPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", demo.username, err)
		}
		if _, err := r.AddUser(domain.User{
			Username:     demo.username,
			PasswordHash: hash,
			ClientID:     client.ID,
			Role:         demo.role,
		}); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", demo.username, err)
		}

		for _, account := range demo.accounts {
			account.ClientID = client.ID
			if _, err := r.AddAccount(account); err != nil {
				return fmt.Errorf("failed to seed account %s: %w", account.AccountNumber, err)
			}
		}
	}
	return nil
}
