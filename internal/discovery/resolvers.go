package discovery

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cmoses01/DyaGram/internal/config"
	"github.com/cmoses01/DyaGram/internal/discoveryworker"
	"github.com/cmoses01/DyaGram/internal/extract"
	"github.com/cmoses01/DyaGram/internal/naming"
	"github.com/cmoses01/DyaGram/internal/resolver"
	"github.com/cmoses01/DyaGram/internal/restconf"
	"github.com/cmoses01/DyaGram/internal/session"
	"github.com/cmoses01/DyaGram/internal/snmp"
)

// NewResolverFactory wires the real protocol clients from cfg. Clients for
// branches the settings turn off are left nil so the resolver skips them.
func NewResolverFactory(log zerolog.Logger, cfg config.Config) ResolverFactory {
	table := extract.DefaultTable()
	dialer := session.NewDialer(log, cfg.Credentials, session.Options{Port: cfg.SSHPort})

	return func(s discoveryworker.Settings) discoveryworker.Resolver {
		deps := resolver.Deps{CLI: resolver.SSH(dialer)}
		if !s.SkipRestconf {
			deps.RESTCONF = restconf.NewClient(cfg.Credentials, restconf.Options{
				Port:               cfg.RestconfPort,
				InsecureSkipVerify: cfg.InsecureTLS,
			})
		}
		if s.SNMP {
			deps.SNMP = snmp.NewClient(snmp.Config{
				Community: cfg.SNMPCommunity,
				Version:   cfg.SNMPVersion,
			})
		}
		if cfg.DNSServer != "" {
			deps.PTR = naming.NewPTRResolver(cfg.DNSServer, 2*time.Second)
		}
		return resolver.New(log, deps, resolver.Options{
			Table:           table,
			FallbackDialect: cfg.FallbackDialect,
			DeviceTimeout:   s.DeviceTimeout,
			SkipRestconf:    s.SkipRestconf,
			VendorNative:    s.VendorNative,
			CollectRoutes:   s.CollectRoutes,
		})
	}
}
