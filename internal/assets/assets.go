// Package assets loads the reference data a registration draws from:
// nicknames, avatars and dated certificate images.
package assets

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CertKind is the certificate subdirectory an image was found in
type CertKind string

const (
	CertHealthInsurance CertKind = "1"
	CertDriverLicence   CertKind = "2"
)

// Certificate is an image whose file name carries the holder's date of birth
type Certificate struct {
	DOB  string // YYYY-MM-DD
	Path string
	Kind CertKind
}

// Dirs locates the reference data on disk
type Dirs struct {
	Names       string // line-delimited nickname file
	Avatars     string
	Images      string // holds the 1/ and 2/ certificate subdirectories
	TempUploads string
}

// Assets is read-only after Load and safe to share between workers
type Assets struct {
	Names        []string
	Avatars      []string
	Certificates []Certificate
	tempDir      string
}

var dobPattern = regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`)

var avatarExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Load reads every source once. Missing files and directories yield empty
// lists; only unreadable existing data is an error.
func Load(dirs Dirs) (*Assets, error) {
	a := &Assets{tempDir: dirs.TempUploads}
	if a.tempDir == "" {
		a.tempDir = filepath.Join(os.TempDir(), "regpool-uploads")
	}

	names, err := loadNames(dirs.Names)
	if err != nil {
		return nil, err
	}
	a.Names = names

	avatars, err := scanAvatars(dirs.Avatars)
	if err != nil {
		return nil, err
	}
	a.Avatars = avatars

	certs, err := scanCertificates(dirs.Images)
	if err != nil {
		return nil, err
	}
	a.Certificates = certs

	return a, nil
}

func loadNames(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read names: %w", err)
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func scanAvatars(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && avatarExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan avatars: %w", err)
	}
	return files, nil
}

func scanCertificates(dir string) ([]Certificate, error) {
	if dir == "" {
		return nil, nil
	}

	var certs []Certificate
	for _, kind := range []CertKind{CertHealthInsurance, CertDriverLicence} {
		entries, err := os.ReadDir(filepath.Join(dir, string(kind)))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificates: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			dob, ok := ParseDOB(e.Name())
			if !ok {
				continue
			}
			certs = append(certs, Certificate{
				DOB:  dob,
				Path: filepath.Join(dir, string(kind), e.Name()),
				Kind: kind,
			})
		}
	}
	return certs, nil
}

// ParseDOB extracts YYYY.M.D from a file name as YYYY-MM-DD
func ParseDOB(name string) (string, bool) {
	m := dobPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%s-%02d-%02d", m[1], month, day), true
}

// Nickname picks a name from the list, or user_NNNNN when the list is empty
func (a *Assets) Nickname(rng *rand.Rand) string {
	if len(a.Names) == 0 {
		return fmt.Sprintf("user_%d", 10000+rng.IntN(90000))
	}
	return a.Names[rng.IntN(len(a.Names))]
}

// Avatar picks an avatar image; ok is false when none are available
func (a *Assets) Avatar(rng *rand.Rand) (string, bool) {
	if len(a.Avatars) == 0 {
		return "", false
	}
	return a.Avatars[rng.IntN(len(a.Avatars))], true
}

// Certificate picks a certificate. With none available it returns a random
// DOB between 1990 and 2003 and no image.
func (a *Assets) Certificate(rng *rand.Rand) Certificate {
	if len(a.Certificates) == 0 {
		return Certificate{
			DOB: fmt.Sprintf("%d-%02d-%02d", 1990+rng.IntN(14), 1+rng.IntN(12), 1+rng.IntN(28)),
		}
	}
	return a.Certificates[rng.IntN(len(a.Certificates))]
}

// Stage copies src under a random name in the upload directory. The returned
// cleanup removes the copy and ignores errors.
func (a *Assets) Stage(src string, rng *rand.Rand) (string, func(), error) {
	if err := os.MkdirAll(a.tempDir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[rng.IntN(len(letters))]
	}
	target := filepath.Join(a.tempDir, string(name)+filepath.Ext(src))

	in, err := os.Open(src)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staged copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return "", nil, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", nil, fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return target, func() { os.Remove(target) }, nil
}
