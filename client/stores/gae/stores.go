//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/option"
)

// KindSession is the Datastore kind for session values
const KindSession = "ClientSession"

// NewClient opens a Datastore client. credentialsFile may be empty to use
// application default credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*datastore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return client, nil
}

// Storage implements client.Storage using Google Cloud Datastore
type Storage struct {
	client    *datastore.Client
	namespace string
	server    string
	ctx       context.Context
}

// NewStorage creates a Datastore-backed Storage for one server
func NewStorage(client *datastore.Client, namespace, server string) *Storage {
	return &Storage{
		client:    client,
		namespace: namespace,
		server:    strings.TrimRight(server, "/"),
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *Storage) WithContext(ctx context.Context) *Storage {
	return &Storage{
		client:    s.client,
		namespace: s.namespace,
		server:    s.server,
		ctx:       ctx,
	}
}

func (s *Storage) namespacedKey(name string) *datastore.Key {
	key := datastore.NameKey(KindSession, s.server+"|"+name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Storage) Load(key string) (string, error) {
	var entity SessionEntity
	if err := s.client.Get(s.ctx, s.namespacedKey(key), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return "", nil
		}
		return "", err
	}
	return entity.Value, nil
}

func (s *Storage) Store(key, value string) error {
	dsKey := s.namespacedKey(key)
	entity := &SessionEntity{
		Key:       dsKey,
		Server:    s.server,
		Name:      key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := s.client.Put(s.ctx, dsKey, entity)
	return err
}

func (s *Storage) Remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	dsKeys := make([]*datastore.Key, len(keys))
	for i, k := range keys {
		dsKeys[i] = s.namespacedKey(k)
	}
	// DeleteMulti on missing keys is not an error
	return s.client.DeleteMulti(s.ctx, dsKeys)
}
