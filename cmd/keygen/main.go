// keygen generates an RSA-2048 signing keypair and writes <kid>.pem and
// <kid>.pub.pem into the configured keys directory. Add the new kid to
// JWT_KEY_IDS (and JWT_ACTIVE_KID to start signing with it) afterwards.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"cermont-atg/authcore/internal/config"
	"cermont-atg/authcore/internal/security"
)

func main() {
	kid := flag.String("kid", "", "Key ID for the new keypair (default: generated)")
	dir := flag.String("dir", "", "Output directory (default: JWT_KEYS_DIR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	outDir := *dir
	if outDir == "" {
		outDir = cfg.JWTKeysDir
	}
	keyID := *kid
	if keyID == "" {
		keyID = "key-" + uuid.New().String()[:8]
	}

	priv, err := security.GenerateRSAKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
	key := security.SigningKey{
		KID:        keyID,
		Algorithm:  "RS256",
		PrivateKey: priv,
		PublicKey:  &priv.PublicKey,
		NotBefore:  time.Now().UTC(),
	}
	if err := security.WriteKeyPair(outDir, key); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s/%s.pem and %s/%s.pub.pem\n", outDir, keyID, outDir, keyID)
}
