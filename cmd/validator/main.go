// Command validator runs a single participant of the threshold-signing
// consensus described by spec.md: it tails the coordinator/consensus
// contracts' events, drives them through pkg/statemachine, persists the
// result via pkg/storage, and executes the resulting actions against
// the coordinator contract. Flag/env shape follows the teacher's
// cmd/kmsServer/main.go (urfave/cli, EnvVars-on-every-flag, a
// persistence-type switch, fatal-log-on-init-error).
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shieldnet/validator-core/pkg/actionqueue"
	queuedurable "github.com/shieldnet/validator-core/pkg/actionqueue/durable"
	queuememory "github.com/shieldnet/validator-core/pkg/actionqueue/memory"
	"github.com/shieldnet/validator-core/pkg/config"
	"github.com/shieldnet/validator-core/pkg/coordinator"
	"github.com/shieldnet/validator-core/pkg/coordinator/awssigner"
	"github.com/shieldnet/validator-core/pkg/driver"
	"github.com/shieldnet/validator-core/pkg/events"
	"github.com/shieldnet/validator-core/pkg/logger"
	"github.com/shieldnet/validator-core/pkg/statemachine"
	"github.com/shieldnet/validator-core/pkg/storage"
	storagebadger "github.com/shieldnet/validator-core/pkg/storage/badger"
	storagememory "github.com/shieldnet/validator-core/pkg/storage/memory"
	storageredis "github.com/shieldnet/validator-core/pkg/storage/redis"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

func main() {
	app := &cli.App{
		Name:  "validator",
		Usage: "threshold-signing consensus validator node",
		Description: `A validator node that participates in a FROST threshold-signing
protocol coordinated on-chain.

This node implements:
- Distributed key generation and epoch rollover
- Threshold Schnorr signing over a nonce-commitment tree
- A pure state machine driven by coordinator/consensus contract events
- Durable storage of consensus state and in-flight signing sessions`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "participant-id",
				Aliases:  []string{"id"},
				Usage:    "this node's 1-based participant identifier",
				EnvVars:  []string{"VALIDATOR_PARTICIPANT_ID"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "threshold",
				Usage:   "minimum signers required for a valid signature",
				EnvVars: []string{"VALIDATOR_THRESHOLD"},
				Value:   2,
			},
			&cli.Uint64Flag{
				Name:    "key-gen-timeout",
				Usage:   "blocks allowed for a key generation round before it is aborted",
				EnvVars: []string{"VALIDATOR_KEY_GEN_TIMEOUT"},
				Value:   256,
			},
			&cli.Uint64Flag{
				Name:    "signing-timeout",
				Usage:   "blocks allowed for a signing session before it is aborted",
				EnvVars: []string{"VALIDATOR_SIGNING_TIMEOUT"},
				Value:   64,
			},
			&cli.StringFlag{
				Name:    "storage-type",
				Usage:   "storage backend: 'memory' (testing only), 'badger' (local disk), or 'redis' (badger stays the store of record; the redis server is only connected to at startup and no state is written to it)",
				Value:   "badger",
				EnvVars: []string{"VALIDATOR_STORAGE_TYPE"},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "redis server address (host:port), used when storage-type=redis",
				Value:   "localhost:6379",
				EnvVars: []string{"VALIDATOR_REDIS_ADDRESS"},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				EnvVars: []string{"VALIDATOR_REDIS_PASSWORD"},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   0,
				EnvVars: []string{"VALIDATOR_REDIS_DB"},
			},
			&cli.BoolFlag{
				Name:    "use-kms-signer",
				Usage:   "sign coordinator transactions with an AWS KMS key instead of the local private key",
				EnvVars: []string{"VALIDATOR_USE_KMS_SIGNER"},
			},
			&cli.StringFlag{
				Name:    "kms-key-id",
				Usage:   "AWS KMS key ID or ARN (required if --use-kms-signer)",
				EnvVars: []string{"VALIDATOR_KMS_KEY_ID"},
			},
			&cli.BoolFlag{
				Name:    "auto-rollover-probe",
				Usage:   "run one deadline check at startup, before any on-chain event arrives",
				EnvVars: []string{"VALIDATOR_AUTO_ROLLOVER_PROBE"},
			},
			&cli.Float64Flag{
				Name:    "rpc-rate-limit",
				Usage:   "max RPC requests per second issued while polling for logs",
				Value:   10,
				EnvVars: []string{"VALIDATOR_RPC_RATE_LIMIT"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "enable verbose (development-mode) logging",
				EnvVars: []string{"VALIDATOR_VERBOSE"},
			},
		},
		Action: runValidator,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("validator: %v", err)
	}
}

func runValidator(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.Config{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("validator: creating logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("validator: loading config: %w", err)
	}
	cfg.AutoRolloverProbe = c.Bool("auto-rollover-probe")

	startupID := uuid.New()
	l.Sugar().Infow("starting validator",
		"startup_id", startupID,
		"participant_id", c.Int("participant-id"),
		"chain_id", cfg.ChainID,
		"storage_type", c.String("storage-type"))

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "./validator-data"
	}

	store, err := openStore(c, dataDir, l)
	if err != nil {
		return fmt.Errorf("validator: opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("error closing storage", "error", err)
		}
	}()

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("validator: dialing RPC: %w", err)
	}

	chainID := new(big.Int).SetUint64(uint64(cfg.ChainID))

	signer, err := buildSigner(c, cfg, chainID, l)
	if err != nil {
		return fmt.Errorf("validator: building signer: %w", err)
	}

	coordClient, err := coordinator.New(eth, cfg.CoordinatorAddress, signer, chainID)
	if err != nil {
		return fmt.Errorf("validator: creating coordinator client: %w", err)
	}

	decoder, err := events.NewDecoder()
	if err != nil {
		return fmt.Errorf("validator: creating event decoder: %w", err)
	}

	queue, closeQueue, err := openQueue(c, dataDir, l)
	if err != nil {
		return fmt.Errorf("validator: opening action queue: %w", err)
	}
	defer closeQueue()

	smCfg := statemachine.Config{
		OwnParticipantID: c.Int("participant-id"),
		Count:            len(cfg.Participants),
		Threshold:        c.Int("threshold"),
		KeyGenTimeout:    c.Uint64("key-gen-timeout"),
		SigningTimeout:   c.Uint64("signing-timeout"),
	}

	drv := driver.New(smCfg, store, queue, l, currentBlockFunc(eth))
	executor := coordinator.NewExecutor(coordClient, l)
	worker := actionqueue.NewWorker(queue, executor, l)
	poller := newLogPoller(eth, decoder, drv, l, rate.Limit(c.Float64("rpc-rate-limit")), cfg.ConsensusAddress, cfg.CoordinatorAddress)

	if cfg.AutoRolloverProbe {
		if err := drv.ProbeDeadline(context.Background()); err != nil {
			l.Sugar().Warnw("auto-rollover probe failed", "error", err)
		}
	}

	return run(l, drv, worker, poller)
}

func run(l *zap.Logger, drv *driver.Driver, worker *actionqueue.Worker, poller *logPoller) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		l.Sugar().Infow("received shutdown signal", "signal", s.String())
		cancel()
	}()

	errCh := make(chan error, 3)
	go func() { errCh <- drv.Run(ctx) }()
	go func() { errCh <- worker.Run(ctx) }()
	go func() { errCh <- poller.Run(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		cancel()
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	}
}

func openStore(c *cli.Context, dataDir string, l *zap.Logger) (storage.Store, error) {
	switch c.String("storage-type") {
	case "memory":
		return storagememory.New(), nil
	case "badger":
		return storagebadger.Open(filepath.Join(dataDir, "state"), l)
	case "redis":
		backing, err := storagebadger.Open(filepath.Join(dataDir, "state"), l)
		if err != nil {
			return nil, fmt.Errorf("opening badger store-of-record behind redis cache: %w", err)
		}
		_, err = storageredis.Open(storageredis.Config{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: "validator",
		}, l)
		if err != nil {
			l.Sugar().Warnw("redis hot-standby cache unavailable, continuing on badger alone", "error", err)
		}
		return backing, nil
	default:
		return nil, fmt.Errorf("unknown storage-type %q", c.String("storage-type"))
	}
}

// openQueue returns the action queue and a func to release whatever
// resources it opened. The memory queue needs nothing closed beyond
// itself; the durable queue additionally owns a dedicated badger.DB.
func openQueue(c *cli.Context, dataDir string, l *zap.Logger) (actionqueue.Queue, func(), error) {
	if c.String("storage-type") == "memory" {
		q := queuememory.New()
		return q, func() { _ = q.Close() }, nil
	}

	opts := badgerdb.DefaultOptions(filepath.Join(dataDir, "queue"))
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening action queue database: %w", err)
	}

	q := queuedurable.Open(db, "coordinator", l)
	return q, func() {
		_ = q.Close()
		_ = db.Close()
	}, nil
}

func buildSigner(c *cli.Context, cfg *config.Config, chainID *big.Int, l *zap.Logger) (coordinator.Signer, error) {
	if !c.Bool("use-kms-signer") {
		key, err := crypto.ToECDSA(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("decoding local private key: %w", err)
		}
		l.Sugar().Infow("using local private key signer")
		return coordinator.NewLocalSigner(key, chainID), nil
	}

	keyID := c.String("kms-key-id")
	if keyID == "" {
		return nil, fmt.Errorf("--kms-key-id is required when --use-kms-signer is set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	kmsClient := kms.NewFromConfig(awsCfg)

	l.Sugar().Infow("using AWS KMS signer", "key_id", keyID)
	return awssigner.New(context.Background(), kmsClient, keyID, chainID)
}

func currentBlockFunc(eth *ethclient.Client) func() uint64 {
	return func() uint64 {
		n, err := eth.BlockNumber(context.Background())
		if err != nil {
			return 0
		}
		return n
	}
}

// logPoller periodically polls for new coordinator/consensus logs and
// submits decoded EventTransitions to the driver, rate-limited since
// this repo (unlike the teacher's chain-indexer-backed BlockHandler)
// has no dedicated poller library in its dependency set; x/time/rate
// is the ecosystem's standard client-side limiter for exactly this.
type logPoller struct {
	eth        *ethclient.Client
	decoder    *events.Decoder
	drv        *driver.Driver
	logger     *zap.Logger
	limiter    *rate.Limiter
	addresses  []common.Address
	lastBlock  uint64
	pollPeriod time.Duration
}

func newLogPoller(eth *ethclient.Client, decoder *events.Decoder, drv *driver.Driver, l *zap.Logger, rps rate.Limit, addrs ...common.Address) *logPoller {
	return &logPoller{
		eth:        eth,
		decoder:    decoder,
		drv:        drv,
		logger:     l,
		limiter:    rate.NewLimiter(rps, 1),
		addresses:  addrs,
		pollPeriod: 3 * time.Second,
	}
}

func (p *logPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if err := p.poll(ctx); err != nil {
				p.logger.Sugar().Warnw("log poll failed, will retry", "error", err)
			}
		}
	}
}

func (p *logPoller) poll(ctx context.Context) error {
	head, err := p.eth.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetching chain head: %w", err)
	}
	if p.lastBlock == 0 {
		p.lastBlock = head
		return nil
	}
	if head <= p.lastBlock {
		return nil
	}

	logs, err := p.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(p.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: p.addresses,
	})
	if err != nil {
		return fmt.Errorf("filtering logs: %w", err)
	}

	for _, raw := range logs {
		transition, err := p.decoder.Decode(raw)
		if err != nil {
			p.logger.Sugar().Warnw("dropping undecodable log", "error", err)
			continue
		}
		if transition == nil {
			continue
		}
		if err := p.drv.Submit(ctx, transition); err != nil {
			p.logger.Sugar().Warnw("dropping event, driver channel full", "id", transition.ID, "error", err)
		}
	}

	p.lastBlock = head
	return nil
}
