package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/models"
	"github.com/zapchat/backend/internal/repositories"
)

// ProbeFunc checks that a wallet connection is usable. Tests inject a fake.
type ProbeFunc func(ctx context.Context, connectionString string) error

// WalletService manages the set of stored wallet connections and the single
// active pointer among them.
type WalletService struct {
	repo  *repositories.ConnectionRepo
	probe ProbeFunc
	cfg   *config.Config
	log   *zap.Logger

	mu sync.Mutex // serializes active-pointer mutation across concurrent API calls
}

func NewWalletService(repo *repositories.ConnectionRepo, cfg *config.Config, log *zap.Logger) *WalletService {
	s := &WalletService{repo: repo, cfg: cfg, log: log}
	s.probe = s.defaultProbe
	return s
}

func (s *WalletService) defaultProbe(ctx context.Context, uri string) error {
	client, err := NewNWCClient(uri, s.cfg.PayTimeout, s.log)
	if err != nil {
		return err
	}
	return client.Probe(ctx)
}

// SetProbe overrides the connectivity probe.
func (s *WalletService) SetProbe(p ProbeFunc) { s.probe = p }

// AddConnection validates, probes and persists a new wallet connection.
// Ordering matters: the prefix check rejects malformed input before any
// network traffic, and a duplicate is rejected before the probe runs.
func (s *WalletService) AddConnection(ctx context.Context, uri, alias string) (*models.WalletConnection, error) {
	if !HasNWCPrefix(uri) {
		return nil, ErrUnrecognizedURI
	}

	existing, err := s.repo.Get(uri)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("this wallet is already connected")
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectionProbeTimeout)
	defer cancel()
	if err := s.probe(probeCtx, uri); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("connection test timed out")
		}
		return nil, fmt.Errorf("could not connect to the wallet: %w", err)
	}

	if alias == "" {
		alias = "NWC Wallet"
	}
	conn := models.WalletConnection{
		ConnectionString: uri,
		Alias:            alias,
		IsConnected:      true,
		AddedAt:          time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Put(conn); err != nil {
		return nil, fmt.Errorf("persist connection: %w", err)
	}

	active, err := s.repo.Active()
	if err != nil {
		return nil, err
	}
	if active == "" {
		if err := s.repo.SetActive(uri); err != nil {
			return nil, err
		}
	}

	s.log.Info("wallet connected", zap.String("alias", alias))
	return &conn, nil
}

// RemoveConnection deletes a stored connection. When the removed one was
// active, the first remaining connection is promoted; with none left the
// active pointer is cleared.
func (s *WalletService) RemoveConnection(ctx context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(uri); err != nil {
		return err
	}

	active, err := s.repo.Active()
	if err != nil {
		return err
	}
	if active != uri {
		return nil
	}

	remaining, err := s.repo.List()
	if err != nil {
		return err
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0].ConnectionString
	}
	if err := s.repo.SetActive(next); err != nil {
		return err
	}

	s.log.Info("wallet disconnected", zap.String("promoted", next))
	return nil
}

// ActiveConnection resolves the current active connection, healing a missing
// or dangling pointer by promoting the first stored connection. Returns nil
// without error when no connections exist.
func (s *WalletService) ActiveConnection(ctx context.Context) (*models.WalletConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.repo.Active()
	if err != nil {
		return nil, err
	}

	if active != "" {
		conn, err := s.repo.Get(active)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}
		s.log.Warn("active pointer referenced a removed connection, healing")
	}

	conns, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		if active != "" {
			_ = s.repo.SetActive("")
		}
		return nil, nil
	}
	if err := s.repo.SetActive(conns[0].ConnectionString); err != nil {
		return nil, err
	}
	return &conns[0], nil
}

// SetActiveConnection points the active marker at a stored connection. An
// unknown URI is rejected so the pointer can never dangle by request.
func (s *WalletService) SetActiveConnection(ctx context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.repo.Get(uri)
	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("unknown wallet connection")
	}
	return s.repo.SetActive(uri)
}

func (s *WalletService) Connections(ctx context.Context) ([]models.WalletConnection, error) {
	return s.repo.List()
}
