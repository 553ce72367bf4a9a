package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownUser is returned when the username has no configured credential.
	ErrUnknownUser = errors.New("auth: unknown user")
	// ErrCredentialStore marks a credential file the process cannot start with.
	ErrCredentialStore = errors.New("auth: invalid credential store")
)

// Repository defines credential lookups for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
}

// credentialsFile mirrors the streamlit-authenticator layout:
//
//	credentials:
//	  usernames:
//	    jdoe:
//	      name: Jane Doe
//	      email: jane@example.com
//	      password: $2b$12$...
type credentialsFile struct {
	Credentials struct {
		Usernames map[string]struct {
			Name     string `yaml:"name"`
			Email    string `yaml:"email"`
			Password string `yaml:"password"`
		} `yaml:"usernames"`
	} `yaml:"credentials"`
}

// FileRepository serves credentials loaded once from a YAML document.
type FileRepository struct {
	users map[string]Credential
}

// LoadCredentialsFile reads and validates the credential store at path.
func LoadCredentialsFile(path string) (*FileRepository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCredentialStore, path, err)
	}
	return ParseCredentials(raw)
}

// ParseCredentials decodes a YAML credential store. Every entry needs a display
// name and a bcrypt hash.
func ParseCredentials(raw []byte) (*FileRepository, error) {
	var doc credentialsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrCredentialStore, err)
	}
	if len(doc.Credentials.Usernames) == 0 {
		return nil, fmt.Errorf("%w: credentials.usernames is empty", ErrCredentialStore)
	}

	validate := validator.New()
	users := make(map[string]Credential, len(doc.Credentials.Usernames))
	var problems []string
	for username, entry := range doc.Credentials.Usernames {
		key := normaliseUsername(username)
		cred := Credential{
			Username:     key,
			DisplayName:  strings.TrimSpace(entry.Name),
			Email:        strings.TrimSpace(entry.Email),
			PasswordHash: strings.TrimSpace(entry.Password),
		}
		if err := validate.Struct(cred); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					problems = append(problems, fmt.Sprintf("%s.%s failed %s", username, fe.Field(), fe.Tag()))
				}
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrCredentialStore, err)
		}
		if _, dup := users[key]; dup {
			problems = append(problems, fmt.Sprintf("%s duplicated", username))
			continue
		}
		users[key] = cred
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("%w: %s", ErrCredentialStore, strings.Join(problems, "; "))
	}
	return &FileRepository{users: users}, nil
}

// FindByUsername looks a credential up case-insensitively.
func (r *FileRepository) FindByUsername(_ context.Context, username string) (*Credential, error) {
	cred, ok := r.users[normaliseUsername(username)]
	if !ok {
		return nil, ErrUnknownUser
	}
	return &cred, nil
}

// Usernames lists configured accounts in sorted order.
func (r *FileRepository) Usernames() []string {
	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normaliseUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
