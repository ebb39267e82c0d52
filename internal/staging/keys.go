package staging

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"
)

const rsaKeyBits = 4096

// UserCAFileName is the staged name of the trusted user CA public key.
const UserCAFileName = "ssh_user_ca.pub"

// GenerateHostKeys generates fresh ed25519 and RSA host key pairs into the
// includes directory. Keys are regenerated on every deploy; the previous
// run's keys were removed by its cleanup, and a redeploy gets a fresh host
// identity.
func (s *Stager) GenerateHostKeys() error {
	comment := "root@" + s.instanceName

	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 host key: %w", err)
	}
	if err := s.writeHostKey("ed25519", edPriv, edPub, comment); err != nil {
		return err
	}

	rsaKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate rsa host key: %w", err)
	}
	if err := s.writeHostKey("rsa", rsaKey, &rsaKey.PublicKey, comment); err != nil {
		return err
	}

	return nil
}

// writeHostKey writes the ssh_host_{algo}_key and .pub pair and remembers
// the public key for certificate signing.
func (s *Stager) writeHostKey(algo string, priv interface{}, pub interface{}, comment string) error {
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return fmt.Errorf("failed to marshal %s private key: %w", algo, err)
	}

	name := fmt.Sprintf("ssh_host_%s_key", algo)
	if err := s.writeStaged(name, pem.EncodeToMemory(block), 0o600); err != nil {
		return err
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return fmt.Errorf("failed to convert %s public key: %w", algo, err)
	}
	pubLine := authorizedKeyWithComment(sshPub, comment)
	if err := s.writeStaged(name+".pub", pubLine, 0o644); err != nil {
		return err
	}

	s.hostKeys = append(s.hostKeys, hostKey{algo: algo, pub: sshPub})
	return nil
}

// SignHostKeys issues a host certificate for every generated host key using
// the CA private key at caKeyPath. The certificate files are written next
// to the keys as ssh_host_{algo}_key-cert.pub.
//
// GenerateHostKeys must have been called first.
func (s *Stager) SignHostKeys(caKeyPath, passphrase string) error {
	if len(s.hostKeys) == 0 {
		return fmt.Errorf("no host keys generated, cannot sign")
	}

	signer, err := loadCASigner(caKeyPath, passphrase)
	if err != nil {
		return err
	}

	for _, hk := range s.hostKeys {
		cert := &ssh.Certificate{
			Key:             hk.pub,
			KeyId:           fmt.Sprintf("%s-%s", s.instanceName, uuid.NewString()),
			CertType:        ssh.HostCert,
			ValidPrincipals: []string{s.instanceName},
			ValidAfter:      0,
			ValidBefore:     ssh.CertTimeInfinity,
		}
		if err := cert.SignCert(rand.Reader, signer); err != nil {
			return fmt.Errorf("failed to sign %s host key: %w", hk.algo, err)
		}

		name := fmt.Sprintf("ssh_host_%s_key-cert.pub", hk.algo)
		if err := s.writeStaged(name, ssh.MarshalAuthorizedKey(cert), 0o644); err != nil {
			return err
		}
		log.Printf("Issued host certificate %s", name)
	}

	return nil
}

// StageUserCA stages the public half of the user signing key as the trusted
// user CA. Accepts either a public key file directly or a private key file
// with a sibling .pub.
func (s *Stager) StageUserCA(keyPath string) error {
	pubPath := keyPath
	if _, err := os.Stat(keyPath + ".pub"); err == nil {
		pubPath = keyPath + ".pub"
	}

	data, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("failed to read user CA key: %w", err)
	}

	// Reject private key material: only the public half gets staged.
	if _, _, _, _, err := ssh.ParseAuthorizedKey(data); err != nil {
		return fmt.Errorf("%s is not a public key (no sibling .pub found?): %w", pubPath, err)
	}

	return s.writeStaged(UserCAFileName, data, 0o644)
}

// loadCASigner parses the CA private key, trying the passphrase when the
// key is encrypted.
func loadCASigner(caKeyPath, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(caKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, fmt.Errorf("signing key %s is encrypted: provide --host-signing-pw or set SIMPLE_CA_SSH_PASSWORD", caKeyPath)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
		}
		return signer, nil
	}

	return nil, fmt.Errorf("failed to parse signing key: %w", err)
}

// authorizedKeyWithComment renders a public key in authorized_keys format
// with a trailing comment, the way ssh-keygen writes .pub files.
func authorizedKeyWithComment(pub ssh.PublicKey, comment string) []byte {
	line := ssh.MarshalAuthorizedKey(pub)
	// MarshalAuthorizedKey terminates with a newline; splice the comment in.
	line = line[:len(line)-1]
	line = append(line, ' ')
	line = append(line, comment...)
	line = append(line, '\n')
	return line
}
