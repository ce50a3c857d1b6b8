// Package config reads and writes two flat files: a newline-separated
// relay list and a single private key, both under a
// directory in the user's XDG config home. Absence of either triggers an
// interactive prompt, reusing the same os.UserConfigDir/EnsureDir shape a
// single JSON config file would use, generalized to two plain-text files.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Config is the loaded relay set and signing key for one session.
type Config struct {
	Relays []string
	Key    string
}

const dirName = "mostr"

func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(configDir, dirName), nil
}

func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

func relayPath(dir string) string { return filepath.Join(dir, "relay") }
func keyPath(dir string) string   { return filepath.Join(dir, "key") }

// Load reads both files without prompting; a missing file yields a nil
// slice / empty key rather than an error, so callers can decide whether to
// prompt (see LoadOrPrompt) or accept an ephemeral, keyless session.
func Load(dir string) (Config, error) {
	relays, err := readRelays(relayPath(dir))
	if err != nil {
		return Config{}, err
	}
	key, err := readKey(keyPath(dir))
	if err != nil {
		return Config{}, err
	}
	return Config{Relays: relays, Key: key}, nil
}

func readRelays(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading relay list: %w", err)
	}
	var relays []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			relays = append(relays, line)
		}
	}
	return relays, nil
}

func readKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeRelays(path string, relays []string) error {
	return os.WriteFile(path, []byte(strings.Join(relays, "\n")+"\n"), 0o644)
}

func writeKey(path, key string) error {
	return os.WriteFile(path, []byte(key+"\n"), 0o600)
}

// LoadOrPrompt loads the config directory's two files, prompting on a
// terminal for whatever is missing and persisting the answer. Absence of
// either file triggers an interactive prompt on startup; a blank relay
// answer is permitted and yields an ephemeral session.
func LoadOrPrompt(dir string, in io.Reader, out io.Writer) (Config, error) {
	if err := EnsureDir(dir); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	// One scanner serves both prompts: a second scanner on the same reader
	// would miss whatever the first one had already buffered.
	scanner := bufio.NewScanner(in)

	rp := relayPath(dir)
	relays, err := readRelays(rp)
	if err != nil {
		return Config{}, err
	}
	if _, statErr := os.Stat(rp); os.IsNotExist(statErr) {
		relays = promptRelays(scanner, out)
		if err := writeRelays(rp, relays); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	kp := keyPath(dir)
	key, err := readKey(kp)
	if err != nil {
		return Config{}, err
	}
	if _, statErr := os.Stat(kp); os.IsNotExist(statErr) {
		key, err = promptKey(in, scanner, out)
		if err != nil {
			return Config{}, err
		}
		if err := writeKey(kp, key); err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	return Config{Relays: relays, Key: key}, nil
}

// SaveRelays overwrites the relay file with the given list, used after a
// `wss://…` relay control message changes the live set.
func SaveRelays(dir string, relays []string) error {
	return writeRelays(relayPath(dir), relays)
}

func promptRelays(scanner *bufio.Scanner, out io.Writer) []string {
	fmt.Fprint(out, "relay urls (space-separated, blank for an ephemeral session): ")
	if !scanner.Scan() {
		return nil
	}
	relays := strings.Fields(scanner.Text())
	if len(relays) == 0 {
		return nil
	}
	return relays
}

// promptKey reads the private key without echoing it to the terminal when
// stdin is a tty (golang.org/x/term); falling back to a plain scanned line
// lets scripted/piped setup still work.
func promptKey(in io.Reader, scanner *bufio.Scanner, out io.Writer) (string, error) {
	fmt.Fprint(out, "private key (hex or nsec1...): ")
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("config: reading key from terminal: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	if !scanner.Scan() {
		return "", fmt.Errorf("config: no key provided")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
