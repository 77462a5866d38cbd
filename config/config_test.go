package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLoadClientDefaults(t *testing.T) {
	file := writeConfig(t, "provider: node.kwil.test:8484\n")

	if err := LoadClient(file); err != nil {
		t.Fatal(err)
	}

	if GetProvider() != "http://node.kwil.test:8484" {
		t.Fatalf("Get=%s, want=http://node.kwil.test:8484", GetProvider())
	}
	if GetTimeout() != 30*time.Second || GetSchemaCacheTTL() != 10*time.Minute {
		t.Fatalf("Get timeout=%s, ttl=%s", GetTimeout(), GetSchemaCacheTTL())
	}
	if GetSignerType() != "secp256k1_ep" || GetLogPath() != "./logs" {
		t.Fatalf("Get signer type=%s, log path=%s", GetSignerType(), GetLogPath())
	}
	if JournalEnabled() {
		t.Fatal("journal must be disabled without a database")
	}
}

func TestLoadClientFile(t *testing.T) {
	file := writeConfig(t, `
provider: https://gateway.kwil.test/
chainid: kwil-testnet
gateway: true
timeout: 5s
signertype: ed25519
label: testnet
user: kwil
password: secret
hostname: 127.0.0.1
database: kwil_client
`)

	if err := LoadClient(file); err != nil {
		t.Fatal(err)
	}

	if GetProvider() != "https://gateway.kwil.test" || GetChainID() != "kwil-testnet" || !GatewayMode() {
		t.Fatalf("Get provider=%s, chain id=%s, gateway=%v", GetProvider(), GetChainID(), GatewayMode())
	}
	if GetTimeout() != 5*time.Second || GetSignerType() != "ed25519" || GetLabel() != "testnet" {
		t.Fatalf("Get timeout=%s, signer type=%s, label=%s", GetTimeout(), GetSignerType(), GetLabel())
	}
	if !JournalEnabled() || GetDbConnStr() != "kwil:secret@tcp(127.0.0.1:3306)/kwil_client" {
		t.Fatalf("Get=%s", GetDbConnStr())
	}
	if GetDBInfo() != "(127.0.0.1:3306)/kwil_client" {
		t.Fatalf("Get=%s", GetDBInfo())
	}
}

func TestLoadClientEnv(t *testing.T) {
	t.Setenv("KWIL_PROVIDER", "http://env.kwil.test:9000")
	t.Setenv("KWIL_PRIVATEKEY", "abcd")

	if err := LoadClient(writeConfig(t, "provider: file.kwil.test\n")); err != nil {
		t.Fatal(err)
	}
	if GetProvider() != "http://env.kwil.test:9000" || GetPrivateKey() != "abcd" {
		t.Fatalf("Get provider=%s, key=%s", GetProvider(), GetPrivateKey())
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := map[string]string{
		"signer type": "provider: localhost:8080\nsignertype: rsa\n",
		"timeout":     "provider: localhost:8080\ntimeout: 0s\n",
		"provider":    "provider: \"http://\"\n",
	}

	for name, content := range testCases {
		if err := LoadClient(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: invalid config must be rejected", name)
		}
	}

	if err := LoadClient(writeConfig(t, "provider: localhost:8080\n")); err != nil {
		t.Fatal(err)
	}
	if err := validateConfig(true); err == nil {
		t.Fatal("the daemon needs a journal database")
	}
}
