// Package toml stores the host's user registry in a TOML file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bnema/odfops/internal/domain"
	"github.com/bnema/odfops/internal/ports"
)

const (
	UsersPathKey    = "users.path"
	usersFileMode   = 0o600
	usersDirMode    = 0o700
	usersConfigDir  = ".odfops"
	usersConfigFile = "users.toml"
	tempFilePattern = ".users-*.toml.tmp"
)

type Repository struct {
	usersPath string
	mu        *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.UserRepository = (*Repository)(nil)

// NewRepository opens the registry at users.path, by default
// ~/.odfops/users.toml. The file is created on first save.
func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	if cfg.GetString(UsersPathKey) == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.SetDefault(UsersPathKey, filepath.Join(homeDir, usersConfigDir, usersConfigFile))
	}

	usersPath, err := normalizeUsersPath(cfg.GetString(UsersPathKey))
	if err != nil {
		return nil, err
	}

	return &Repository{usersPath: usersPath, mu: lockForPath(usersPath)}, nil
}

func (r *Repository) Path() string {
	return r.usersPath
}

func (r *Repository) Save(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(user)
	updated := false
	for i := range file.Users {
		if file.Users[i].ID == encoded.ID {
			file.Users[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Users = append(file.Users, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return r.find(ctx, func(entry userSchema) bool { return entry.ID == string(id) })
}

func (r *Repository) GetByLogin(ctx context.Context, login string) (domain.User, error) {
	return r.find(ctx, func(entry userSchema) bool { return entry.Login == login })
}

func (r *Repository) List(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(file.Users))
	for _, entry := range file.Users {
		users = append(users, fromSchema(entry))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Login < users[j].Login })

	return users, nil
}

func (r *Repository) find(ctx context.Context, match func(userSchema) bool) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.User{}, err
	}

	for _, entry := range file.Users {
		if match(entry) {
			return fromSchema(entry), nil
		}
	}

	return domain.User{}, domain.ErrUserNotFound
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.usersPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read users file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode users file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeUsersPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("users path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve users path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.usersPath), usersDirMode); err != nil {
		return fmt.Errorf("create users directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode users file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.usersPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp users file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp users file: %w", err)
	}
	if err := tempFile.Chmod(usersFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp users file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp users file: %w", err)
	}
	if err := os.Rename(tempName, r.usersPath); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	cleanup = false

	return nil
}

func toSchema(user domain.User) userSchema {
	return userSchema{
		ID:           string(user.ID),
		Login:        user.Login,
		PasswordHash: user.PasswordHash,
		Profile: profileSchema{
			FullName: user.FullName,
			Color:    user.Color,
			ImageURL: user.ImageURL,
		},
	}
}

func fromSchema(entry userSchema) domain.User {
	return domain.User{
		ID:           domain.UserID(entry.ID),
		Login:        entry.Login,
		PasswordHash: entry.PasswordHash,
		FullName:     entry.Profile.FullName,
		Color:        entry.Profile.Color,
		ImageURL:     entry.Profile.ImageURL,
	}
}
