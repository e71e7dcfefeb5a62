package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa"
	"github.com/AvaProtocol/ap-aa-sdk/core/chainio/aa/paymaster"
	"github.com/AvaProtocol/ap-aa-sdk/core/config"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/bundler"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/client"
	"github.com/AvaProtocol/ap-aa-sdk/pkg/erc4337/middleware"
)

// session holds everything a command needs, wired from the config file.
type session struct {
	cfg     *config.Config
	node    *bundler.BundlerClient
	bundler *bundler.BundlerClient
	account *aa.Account
	client  *client.SmartAccountClient
	chainID *big.Int
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger

	node, err := bundler.NewBundlerClient(ctx, cfg.EthRpcUrl, log)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	bc := node
	if cfg.BundlerUrl != cfg.EthRpcUrl {
		bc, err = bundler.NewBundlerClient(ctx, cfg.BundlerUrl, log)
		if err != nil {
			node.Close()
			return nil, fmt.Errorf("connect bundler: %w", err)
		}
	}

	s := &session{cfg: cfg, node: node, bundler: bc}

	s.chainID = cfg.ChainID
	if s.chainID == nil {
		if s.chainID, err = node.ChainID(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.account, err = aa.NewAccount(cfg.AccountParams(node))
	if err != nil {
		s.Close()
		return nil, err
	}

	var mw []middleware.Option
	if cfg.Paymaster != nil {
		pm, err := paymaster.NewVerifyingPaymaster(paymaster.Params{
			Address:  cfg.Paymaster.Address,
			Signer:   cfg.Paymaster.Signer,
			Chain:    node,
			Validity: cfg.Paymaster.Validity,
			Logger:   log,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		mw = append(mw, middleware.WithPaymasterMiddleware(middleware.PaymasterMiddleware(pm)))
	}

	s.client, err = client.New(client.Params{
		Transport:  bc,
		Account:    s.account,
		ChainID:    s.chainID,
		FeeFloor:   cfg.FeeFloor(s.chainID),
		Middleware: mw,
		Logger:     log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	log.Info("session ready",
		"chain", string(config.ChainEnvOf(s.chainID)),
		"account_kind", string(cfg.AccountKind),
		"signer", cfg.Signer.SignerType())
	return s, nil
}

func (s *session) Close() {
	if s.bundler != s.node {
		s.bundler.Close()
	}
	s.node.Close()
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
