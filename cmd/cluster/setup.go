// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/muonpi/cluster/internal/config"
)

// credentialsFile is the plaintext shape read by --setup and the
// encrypted-at-rest shape written alongside it (password fields hold
// ciphertext once written).
type credentialsFile struct {
	BusLogin     string `yaml:"bus_login"`
	BusPassword  string `yaml:"bus_password"`
	TSDBLogin    string `yaml:"tsdb_login"`
	TSDBPassword string `yaml:"tsdb_password"`
	LDAPBindDN   string `yaml:"ldap_bind_dn"`
	LDAPPassword string `yaml:"ldap_password"`
}

// localSecretEnvVar names the environment variable holding the
// installation's local secret used to derive the credential encryption
// key. It must be set identically for --setup and normal startup.
const localSecretEnvVar = "MUON_CLUSTER_LOCAL_SECRET"

// runSetup reads the plaintext credentials file at srcPath, encrypts
// every password field, and overwrites it in place with the encrypted
// form, then returns. This is the --setup PATH CLI flow.
func runSetup(srcPath string) error {
	secret := os.Getenv(localSecretEnvVar)
	if secret == "" {
		return fmt.Errorf("setup: %s must be set", localSecretEnvVar)
	}

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("setup: read credentials file: %w", err)
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("setup: parse credentials file: %w", err)
	}

	encryptor, err := config.NewCredentialEncryptor(secret)
	if err != nil {
		return fmt.Errorf("setup: create encryptor: %w", err)
	}

	for _, field := range []*string{&creds.BusPassword, &creds.TSDBPassword, &creds.LDAPPassword} {
		if *field == "" {
			continue
		}
		ciphertext, err := encryptor.Encrypt(*field)
		if err != nil {
			return fmt.Errorf("setup: encrypt credential: %w", err)
		}
		*field = ciphertext
	}

	out, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("setup: marshal encrypted credentials: %w", err)
	}
	if err := os.WriteFile(srcPath, out, 0o600); err != nil {
		return fmt.Errorf("setup: write encrypted credentials file: %w", err)
	}
	return nil
}

// loadCredentials reads an encrypted credentials file (as written by
// --setup) and decrypts its password fields, merging them into cfg.
func loadCredentials(path string, cfg *config.Config) error {
	secret := os.Getenv(localSecretEnvVar)
	if secret == "" {
		return fmt.Errorf("credentials: %s must be set", localSecretEnvVar)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("credentials: read file: %w", err)
	}

	var creds credentialsFile
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("credentials: parse file: %w", err)
	}

	encryptor, err := config.NewCredentialEncryptor(secret)
	if err != nil {
		return fmt.Errorf("credentials: create encryptor: %w", err)
	}

	decrypt := func(ciphertext string) (string, error) {
		if ciphertext == "" {
			return "", nil
		}
		return encryptor.Decrypt(ciphertext)
	}

	cfg.Bus.Login = creds.BusLogin
	cfg.TSDB.Login = creds.TSDBLogin
	cfg.LDAP.BindDN = creds.LDAPBindDN

	if cfg.Bus.Password, err = decrypt(creds.BusPassword); err != nil {
		return fmt.Errorf("credentials: decrypt bus password: %w", err)
	}
	if cfg.TSDB.Password, err = decrypt(creds.TSDBPassword); err != nil {
		return fmt.Errorf("credentials: decrypt tsdb password: %w", err)
	}
	if cfg.LDAP.Password, err = decrypt(creds.LDAPPassword); err != nil {
		return fmt.Errorf("credentials: decrypt ldap password: %w", err)
	}
	return nil
}
