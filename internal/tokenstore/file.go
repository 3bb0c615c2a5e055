package tokenstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
)

const fileFormatVersion = 1

// checkKey and checkValue form the sealed marker that tells a wrong
// passphrase apart from a damaged entry.
const (
	checkKey   Key = "$passphrase-check"
	checkValue     = "devquote"
)

// FileConfig configures a FileBackend.
type FileConfig struct {
	// Path is the JSON document holding every entry.
	Path string

	// Passphrase enables sealing of values. Empty stores plaintext.
	Passphrase string

	Logger *log.Logger
}

// FileBackend stores entries in a single JSON document on disk.
//
// Every write replaces the document through a temp file and a rename, so
// readers see either the old or the new document. The file is created with
// mode 0600. The document is re-read on every call because other devquote
// processes may share it.
type FileBackend struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
	sealer     *sealer
	logger     *log.Logger
}

type fileDocument struct {
	Version int               `json:"version"`
	Salt    string            `json:"salt,omitempty"`
	Check   string            `json:"check,omitempty"`
	Entries map[Key]fileEntry `json:"entries"`
}

type fileEntry struct {
	Value  string `json:"value"`
	Sum    string `json:"sum"`
	Sealed bool   `json:"sealed,omitempty"`
}

// NewFileBackend creates a backend rooted at cfg.Path. The file itself is
// created on first write.
func NewFileBackend(cfg FileConfig) (*FileBackend, error) {
	if cfg.Path == "" {
		return nil, errors.NewValidationError("storage.path", "is required for the file backend")
	}
	return &FileBackend{
		path:       cfg.Path,
		passphrase: []byte(cfg.Passphrase),
		logger:     log.OrDefault(cfg.Logger).With("component", "tokenstore", "backend", "file"),
	}, nil
}

func (f *FileBackend) Name() string { return "file" }

// Path returns the document location.
func (f *FileBackend) Path() string { return f.path }

// Get returns the verified plaintext for key. Entries that fail the
// checksum or their own seal are reported as absent. A sealed entry that
// the configured passphrase cannot open at all is a STORE-003 error and
// the document is left untouched.
func (f *FileBackend) Get(ctx context.Context, key Key) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	entry, ok := doc.Entries[key]
	if !ok {
		return "", false, nil
	}

	plain, err := f.openEntry(doc, key, entry)
	if errors.HasCode(err, errors.ErrCodeStorageCrypto) {
		return "", false, err
	}
	if err != nil {
		f.logger.Warn("discarding unreadable entry", "key", string(key), "reason", err.Error())
		return "", false, nil
	}
	return string(plain), true, nil
}

// SetMulti writes values in one document replacement.
func (f *FileBackend) SetMulti(ctx context.Context, values map[Key]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := f.prepareSealer(doc); err != nil {
		return err
	}

	for k, v := range values {
		entry, err := f.sealEntry(k, []byte(v))
		if err != nil {
			return err
		}
		doc.Entries[k] = entry
	}
	return f.save(doc)
}

// Delete removes keys. The document is only rewritten when something changed.
func (f *FileBackend) Delete(ctx context.Context, keys ...Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc.Entries[k]; ok {
			delete(doc.Entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(doc)
}

func (f *FileBackend) Close() error { return nil }

// load reads the document. A missing file is empty; an unparseable one is
// logged and treated as empty so the next write replaces it.
func (f *FileBackend) load() (*fileDocument, error) {
	empty := &fileDocument{Version: fileFormatVersion, Entries: map[Key]fileEntry{}}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn("token file is corrupt, treating as empty", "path", f.path, "reason", err.Error())
		return empty, nil
	}
	if doc.Entries == nil {
		doc.Entries = map[Key]fileEntry{}
	}
	return &doc, nil
}

func (f *FileBackend) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// prepareSealer makes sure the document has a salt and a passphrase check,
// and refuses to write when the passphrase does not match the one the
// document was sealed with.
func (f *FileBackend) prepareSealer(doc *fileDocument) error {
	if len(f.passphrase) == 0 {
		return nil
	}
	if doc.Salt == "" {
		salt, err := newSalt()
		if err != nil {
			return errors.NewStorageCryptoError(err)
		}
		doc.Salt = base64.StdEncoding.EncodeToString(salt)
		doc.Check = ""
	}
	s, err := f.sealerFor(doc)
	if err != nil {
		return err
	}
	if doc.Check != "" {
		return f.verifyPassphrase(doc, s)
	}
	sealed, err := s.seal(checkKey, []byte(checkValue))
	if err != nil {
		return errors.NewStorageCryptoError(err)
	}
	doc.Check = base64.StdEncoding.EncodeToString(sealed)
	return nil
}

// verifyPassphrase opens the document's check marker. A document without
// one is accepted.
func (f *FileBackend) verifyPassphrase(doc *fileDocument, s *sealer) error {
	if doc.Check == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(doc.Check)
	if err == nil {
		var plain []byte
		plain, err = s.open(checkKey, raw)
		if err == nil && string(plain) != checkValue {
			err = fmt.Errorf("unexpected check value")
		}
	}
	if err != nil {
		return errors.NewStorageCryptoError(fmt.Errorf("passphrase does not open %s: %w", f.path, err))
	}
	return nil
}

func (f *FileBackend) sealerFor(doc *fileDocument) (*sealer, error) {
	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil || len(salt) == 0 {
		return nil, errors.NewStorageCryptoError(fmt.Errorf("invalid salt"))
	}
	if f.sealer == nil || string(f.sealer.salt) != string(salt) {
		f.sealer = deriveSealer(f.passphrase, salt)
	}
	return f.sealer, nil
}

func (f *FileBackend) sealEntry(key Key, plain []byte) (fileEntry, error) {
	entry := fileEntry{Sum: checksum(plain)}
	if len(f.passphrase) == 0 {
		entry.Value = string(plain)
		return entry, nil
	}
	sealed, err := f.sealer.seal(key, plain)
	if err != nil {
		return fileEntry{}, errors.NewStorageCryptoError(err)
	}
	entry.Value = base64.StdEncoding.EncodeToString(sealed)
	entry.Sealed = true
	return entry, nil
}

func (f *FileBackend) openEntry(doc *fileDocument, key Key, entry fileEntry) ([]byte, error) {
	plain := []byte(entry.Value)
	if entry.Sealed {
		if len(f.passphrase) == 0 {
			return nil, errors.NewStorageCryptoError(fmt.Errorf("%s is sealed and no passphrase is configured", f.path))
		}
		s, err := f.sealerFor(doc)
		if err != nil {
			return nil, err
		}
		if err := f.verifyPassphrase(doc, s); err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("decode sealed value: %w", err)
		}
		plain, err = s.open(key, raw)
		if err != nil {
			return nil, fmt.Errorf("unseal: %w", err)
		}
	}
	if checksum(plain) != entry.Sum {
		return nil, fmt.Errorf("checksum mismatch")
	}
	return plain, nil
}
