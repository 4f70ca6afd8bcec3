package model

import (
	"time"
	"unicode"

	"github.com/segmentio/ksuid"
)

// RepoDescriptor describes a repository instance.
//
// All instances of the same repository, e.g. a clone and its origin, share the same RepoID and AdminID.
// The InstanceID is unique to each instance.
type RepoDescriptor struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	RepoID      string    `json:"repoID" yaml:"repoID"`
	AdminID     string    `json:"adminID" yaml:"adminID"`
	InstanceID  string    `json:"instanceID" yaml:"instanceID"`
	Timestamp   time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// RepoOption sets options on a repository descriptor
type RepoOption func(*RepoDescriptor)

// RepoDescription sets a description
func RepoDescription(d string) RepoOption {
	return func(r *RepoDescriptor) {
		r.Description = d
	}
}

// RepoIdentity makes the descriptor an instance of an existing repository
func RepoIdentity(repoID, adminID string) RepoOption {
	return func(r *RepoDescriptor) {
		r.RepoID = repoID
		r.AdminID = adminID
	}
}

// NewRepoDescriptor builds a descriptor for a new repository instance, with fresh ids unless
// the identity of some existing repository is provided.
func NewRepoDescriptor(name string, opts ...RepoOption) *RepoDescriptor {
	r := &RepoDescriptor{
		Name:       name,
		RepoID:     ksuid.New().String(),
		AdminID:    ksuid.New().String(),
		InstanceID: ksuid.New().String(),
		Timestamp:  time.Now().UTC(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// IsRelated tells if two repository instances may be synchronized
func (r RepoDescriptor) IsRelated(other RepoDescriptor) bool {
	return r.RepoID == other.RepoID && r.AdminID == other.AdminID
}

// ValidateRepo checks a repository descriptor
func ValidateRepo(repo RepoDescriptor) error {
	if repo.Name == "" {
		return ErrInvalidDescriptor.WrapMessage("empty field: repo name is empty")
	}
	for i, c := range repo.Name {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !unicode.Is(unicode.Hyphen, c) && c != '_' && c != '.' {
			return ErrInvalidDescriptor.WrapMessage("invalid name: repo name:%s contains unsupported character %q",
				repo.Name, string([]rune(repo.Name)[i]))
		}
	}
	for field, id := range map[string]string{"repoID": repo.RepoID, "adminID": repo.AdminID, "instanceID": repo.InstanceID} {
		if _, err := ksuid.Parse(id); err != nil {
			return ErrInvalidDescriptor.WrapMessage("invalid %s %q: %v", field, id, err)
		}
	}
	return nil
}
