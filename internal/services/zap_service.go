package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	gonostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/zapchat/backend/internal/config"
	"github.com/zapchat/backend/internal/events"
	"github.com/zapchat/backend/internal/lightning"
	"github.com/zapchat/backend/internal/models"
	"github.com/zapchat/backend/internal/nostr"
)

const (
	kindProfile    = 0
	kindZapRequest = 9734
)

// TransportFactory builds a payment transport from a stored wallet
// connection. Tests swap it for a fake.
type TransportFactory func(conn models.WalletConnection) (PaymentTransport, error)

// ZapParams describes one dispatch. Target and RecipientPubkey are mutually
// exclusive ways to name the recipient; with a Target the recipient is the
// event's author.
type ZapParams struct {
	Target          *gonostr.Event
	RecipientPubkey string
	AmountSats      int64
	Comment         string
	OnSettled       func()
}

type ZapResult struct {
	Status       string `json:"status"`
	Transport    string `json:"transport,omitempty"`
	Preimage     string `json:"preimage,omitempty"`
	Invoice      string `json:"invoice,omitempty"`
	LightningURI string `json:"lightning_uri,omitempty"`
	AmountSats   int64  `json:"amount_sats"`
}

// ZapService drives a zap from intent to settlement: request construction,
// endpoint resolution, invoice retrieval and the transport fallback chain.
type ZapService struct {
	relay     nostr.RelayClient
	signer    nostr.Signer
	wallets   *WalletService
	local     LocalWallet
	lnClient  *lightning.Client
	receipts  *ReceiptService
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger

	newTransport TransportFactory
}

func NewZapService(
	relay nostr.RelayClient,
	signer nostr.Signer,
	wallets *WalletService,
	local LocalWallet,
	lnClient *lightning.Client,
	receipts *ReceiptService,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *ZapService {
	s := &ZapService{
		relay:     relay,
		signer:    signer,
		wallets:   wallets,
		local:     local,
		lnClient:  lnClient,
		receipts:  receipts,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
	s.newTransport = func(conn models.WalletConnection) (PaymentTransport, error) {
		return NewNWCClient(conn.ConnectionString, cfg.PayTimeout, log)
	}
	return s
}

// SetTransportFactory overrides how wallet connections become transports.
func (s *ZapService) SetTransportFactory(f TransportFactory) { s.newTransport = f }

// Zap dispatches one payment. Settlement through a transport yields a
// settled result; when every transport fails or none exists the result
// carries the raw invoice for manual settlement, which is a valid terminal
// outcome rather than an error.
func (s *ZapService) Zap(ctx context.Context, params ZapParams) (*ZapResult, error) {
	if s.signer == nil {
		return nil, nostr.ErrNoSigner
	}
	if params.AmountSats <= 0 {
		return nil, fmt.Errorf("zap amount must be positive")
	}
	if params.Target != nil && params.RecipientPubkey != "" && params.RecipientPubkey != params.Target.PubKey {
		return nil, fmt.Errorf("recipient pubkey does not match the target event author")
	}
	recipient := params.RecipientPubkey
	if params.Target != nil {
		recipient = params.Target.PubKey
	}
	if recipient == "" {
		return nil, fmt.Errorf("could not resolve a zap recipient")
	}
	if recipient == s.signer.PublicKey() {
		return nil, fmt.Errorf("cannot zap yourself")
	}

	state := models.ZapStatusIdle
	s.transition(ctx, &state, models.ZapStatusRequestingInvoice, recipient)

	callback, err := s.resolveEndpoint(ctx, recipient)
	if err != nil {
		s.transition(ctx, &state, models.ZapStatusIdle, recipient)
		return nil, err
	}

	amountMsat := params.AmountSats * 1000
	zapRequest, err := s.buildZapRequest(ctx, recipient, params, amountMsat)
	if err != nil {
		s.transition(ctx, &state, models.ZapStatusIdle, recipient)
		return nil, err
	}
	reqJSON, err := json.Marshal(zapRequest)
	if err != nil {
		s.transition(ctx, &state, models.ZapStatusIdle, recipient)
		return nil, fmt.Errorf("encode zap request: %w", err)
	}

	invoice, err := s.lnClient.RequestInvoice(ctx, callback, amountMsat, reqJSON)
	if err != nil {
		s.transition(ctx, &state, models.ZapStatusIdle, recipient)
		return nil, err
	}

	// The invoice's encoded amount is taken at face value; the recipient's
	// endpoint is trusted to honor the requested amount.
	transports := s.buildTransports(ctx)
	if len(transports) > 0 {
		s.transition(ctx, &state, models.ZapStatusAwaitingTransport, recipient)
		for _, t := range transports {
			preimage, payErr := t.Pay(ctx, invoice)
			if payErr == nil {
				s.transition(ctx, &state, models.ZapStatusSettled, recipient)
				s.settled(ctx, params, recipient, t.Name())
				return &ZapResult{
					Status:     models.ZapStatusSettled,
					Transport:  t.Name(),
					Preimage:   preimage,
					AmountSats: params.AmountSats,
				}, nil
			}
			s.notifyFallback(ctx, recipient, t.Name(), payErr)
		}
	}

	s.transition(ctx, &state, models.ZapStatusAwaitingManual, recipient)
	return &ZapResult{
		Status:       models.ZapStatusAwaitingManual,
		Invoice:      invoice,
		LightningURI: "lightning:" + invoice,
		AmountSats:   params.AmountSats,
	}, nil
}

func (s *ZapService) transition(ctx context.Context, state *string, to, recipient string) {
	if !models.IsValidZapTransition(*state, to) {
		s.log.Warn("invalid zap transition",
			zap.String("from", *state),
			zap.String("to", to))
		return
	}
	from := *state
	*state = to
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, "events:zaps", events.Event{
			Type: events.EventZapStatusChanged,
			Payload: map[string]any{
				"recipient":  recipient,
				"old_status": from,
				"new_status": to,
			},
		})
	}
}

type profileMetadata struct {
	Name  string `json:"name"`
	Lud06 string `json:"lud06"`
	Lud16 string `json:"lud16"`
}

func (s *ZapService) resolveEndpoint(ctx context.Context, recipient string) (string, error) {
	profile, err := s.fetchProfile(ctx, recipient)
	if err != nil {
		return "", err
	}
	endpointURL, err := lightning.EndpointURLFromMetadata(profile.Lud06, profile.Lud16)
	if err != nil {
		return "", fmt.Errorf("the recipient has no lightning address configured")
	}
	ep, err := s.lnClient.FetchPayEndpoint(ctx, endpointURL)
	if err != nil {
		return "", fmt.Errorf("could not resolve a zap endpoint: %w", err)
	}
	return ep.Callback, nil
}

func (s *ZapService) fetchProfile(ctx context.Context, pubkey string) (*profileMetadata, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.ProfileQueryTimeout)
	defer cancel()

	evs, err := s.relay.Query(qctx, gonostr.Filters{{
		Kinds:   []int{kindProfile},
		Authors: []string{pubkey},
		Limit:   1,
	}})
	if err != nil {
		return nil, fmt.Errorf("could not load the recipient profile: %w", err)
	}
	if len(evs) == 0 {
		return nil, fmt.Errorf("recipient profile not found")
	}

	// Newest profile wins when relays disagree.
	sort.Slice(evs, func(i, j int) bool { return evs[i].CreatedAt > evs[j].CreatedAt })
	var profile profileMetadata
	if err := json.Unmarshal([]byte(evs[0].Content), &profile); err != nil {
		return nil, fmt.Errorf("malformed recipient profile: %w", err)
	}
	return &profile, nil
}

func (s *ZapService) buildZapRequest(ctx context.Context, recipient string, params ZapParams, amountMsat int64) (*gonostr.Event, error) {
	tags := gonostr.Tags{
		{"p", recipient},
		{"amount", strconv.FormatInt(amountMsat, 10)},
	}
	relayTag := gonostr.Tag{"relays"}
	relayTag = append(relayTag, s.cfg.RelayURLs...)
	tags = append(tags, relayTag)

	if t := params.Target; t != nil {
		if t.Kind >= 30000 && t.Kind < 40000 {
			identifier := ""
			if d := t.Tags.GetFirst([]string{"d"}); d != nil {
				identifier = d.Value()
			}
			tags = append(tags, gonostr.Tag{"a", fmt.Sprintf("%d:%s:%s", t.Kind, t.PubKey, identifier)})
		} else {
			tags = append(tags, gonostr.Tag{"e", t.ID})
		}
	}

	ev := &gonostr.Event{
		Kind:      kindZapRequest,
		CreatedAt: gonostr.Now(),
		Content:   params.Comment,
		Tags:      tags,
	}
	if err := s.signer.SignEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("sign zap request: %w", err)
	}
	return ev, nil
}

// buildTransports assembles the fallback chain in priority order: the
// active wallet connection first, then the local capability.
func (s *ZapService) buildTransports(ctx context.Context) []PaymentTransport {
	var transports []PaymentTransport
	if s.wallets != nil {
		conn, err := s.wallets.ActiveConnection(ctx)
		if err != nil {
			s.log.Warn("active wallet lookup failed", zap.Error(err))
		} else if conn != nil && conn.IsConnected {
			t, err := s.newTransport(*conn)
			if err != nil {
				s.log.Warn("skipping active wallet connection", zap.Error(err))
			} else {
				transports = append(transports, t)
			}
		}
	}
	if s.local != nil {
		transports = append(transports, NewLocalWalletTransport(s.local))
	}
	return transports
}

func (s *ZapService) notifyFallback(ctx context.Context, recipient, transport string, err error) {
	s.log.Warn("payment transport failed, falling back",
		zap.String("transport", transport),
		zap.Error(err))
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, "events:zaps", events.Event{
			Type: events.EventZapFallback,
			Payload: map[string]any{
				"recipient": recipient,
				"transport": transport,
				"reason":    err.Error(),
			},
		})
	}
}

func (s *ZapService) settled(ctx context.Context, params ZapParams, recipient, transport string) {
	if s.receipts != nil {
		s.receipts.Invalidate(ctx, recipient)
	}
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, "events:zaps", events.Event{
			Type: events.EventZapSettled,
			Payload: map[string]any{
				"recipient":   recipient,
				"transport":   transport,
				"amount_sats": params.AmountSats,
			},
		})
	}
	if params.OnSettled != nil {
		params.OnSettled()
	}
}
