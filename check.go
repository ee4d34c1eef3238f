package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"teamwallets/pkg/config"
	"teamwallets/pkg/models"
	"teamwallets/pkg/roster"
	"teamwallets/pkg/rpc"

	"github.com/fatih/color"
)

var errInvalidConfig = errors.New("invalid configuration")

type checkOptions struct {
	json   bool
	dryRun bool
}

// runCheck verifies cfg, the configuration with environment overrides applied,
// against its RPC endpoints. Fetched chain id and token metadata are written
// back into file, the configuration as read from path, and saved unless dryRun
// is set. Human readable progress goes to out unless JSON output was requested.
func runCheck(ctx context.Context, file, cfg config.Config, path string, opts checkOptions, out io.Writer) models.CheckReport {
	say := func(format string, a ...any) {
		if !opts.json {
			_, _ = fmt.Fprintf(out, format, a...)
		}
	}

	report := models.CheckReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         opts.dryRun,
		ChainName:      cfg.Chain.Name,
		ConfigChainID:  cfg.Chain.ChainID,
		TokenSymbol:    cfg.Chain.Token.Symbol,
		TokenDecimals:  cfg.Chain.Token.Decimals,
	}
	say("Testing configuration at: %s\n", path)

	structureErr := func(msg string) {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, msg)
		say("%s %s\n", color.RedString("Error:"), msg)
	}
	if err := cfg.Validate(); err != nil {
		structureErr(err.Error())
	}
	wallets, err := roster.FromConfig(cfg.Addresses)
	if err != nil {
		structureErr(err.Error())
	}
	if !report.ValidStructure {
		return report
	}

	report.WalletCount = len(wallets)
	say("Found %d wallets on chain %s.\n", len(wallets), cfg.Chain.Name)

	var observed int64
	for _, url := range cfg.Chain.RPCURLs {
		res := models.RPCResult{URL: url}
		say("  RPC: %s ... ", url)

		id, err := rpc.FetchChainID(ctx, url)
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
			say("%s %v\n", color.RedString("Failed:"), err)
			report.RPCs = append(report.RPCs, res)
			continue
		}
		res.Status = "ok"
		res.ChainID = id
		say("%s (ChainID: %d)", color.GreenString("OK"), id)

		if observed == 0 {
			observed = id
			report.ObservedChainID = id
		} else if observed != id {
			say(" - %s ChainID mismatch with previous RPC (%d)", color.YellowString("WARNING:"), observed)
			report.Inconsistent = true
		}

		switch {
		case cfg.Chain.ChainID == 0:
			cfg.Chain.ChainID = id
			if file.Chain.ChainID == 0 {
				file.Chain.ChainID = id
			}
			report.ConfigUpdated = true
			say(" - UPDATED CONFIG")
			if opts.dryRun {
				say(" (DRY RUN)")
			}
		case cfg.Chain.ChainID != id:
			res.Error = fmt.Sprintf("Mismatch! Expected %d", cfg.Chain.ChainID)
			say(" - %s Expected %d", color.RedString("MISMATCH!"), cfg.Chain.ChainID)
		default:
			say(" - Verified")
		}
		say("\n")
		report.RPCs = append(report.RPCs, res)
	}

	if report.Inconsistent {
		say("\n%s RPCs for %s return conflicting Chain IDs!\n", color.YellowString("WARNING:"), cfg.Chain.Name)
	}

	if token := cfg.Chain.Token; token.Address != "" {
		say("Token %s ... ", token.Address)
		md, err := rpc.FetchTokenMetadata(ctx, cfg.Chain.RPCURLs, token.Address)
		if err != nil {
			say("%s %v\n", color.RedString("Failed:"), err)
		} else {
			say("%s (%s, %d decimals)\n", color.GreenString("OK"), md.Symbol, md.Decimals)
			// Metadata for a token set only in the environment stays out of the file.
			sameToken := strings.EqualFold(strings.TrimSpace(file.Chain.Token.Address), strings.TrimSpace(token.Address))
			if strings.TrimSpace(token.Symbol) == "" && md.Symbol != "" {
				cfg.Chain.Token.Symbol = md.Symbol
				if sameToken && strings.TrimSpace(file.Chain.Token.Symbol) == "" {
					file.Chain.Token.Symbol = md.Symbol
				}
				report.ConfigUpdated = true
			}
			if token.Decimals != md.Decimals {
				say("  Decimals in config (%d) differ from the contract (%d)\n", token.Decimals, md.Decimals)
				cfg.Chain.Token.Decimals = md.Decimals
				report.ConfigUpdated = true
			}
			if sameToken && file.Chain.Token.Decimals != md.Decimals {
				file.Chain.Token.Decimals = md.Decimals
				report.ConfigUpdated = true
			}
			report.TokenSymbol = cfg.Chain.Token.Symbol
			report.TokenDecimals = cfg.Chain.Token.Decimals
		}
	}

	if report.ConfigUpdated {
		say("\nUpdating configuration with fetched chain data...\n")
		if opts.dryRun {
			say("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(file, path); err != nil {
			report.SaveError = err.Error()
			say("%s %v\n", color.RedString("Failed to save config:"), err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}
	return report
}
