package discovery

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/config"
)

// Module registers the HTTP service in Consul for the lifetime of the app.
var Module = fx.Module("discovery",
	fx.Invoke(Run),
)

// Agent is the subset of the Consul agent API used for registration.
type Agent interface {
	ServiceRegister(reg *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

// Registration builds the Consul registration for the order HTTP service,
// including an HTTP health check against /health.
func Registration(cfg config.Config) *api.AgentServiceRegistration {
	host := cfg.Discovery.AdvertiseHost
	if host == "" {
		host = advertiseHost(cfg.HTTP.Host)
	}

	return &api.AgentServiceRegistration{
		ID:      cfg.Discovery.ServiceID,
		Name:    cfg.Observability.ServiceName,
		Address: host,
		Port:    cfg.HTTP.Port,
		Tags:    cfg.Discovery.Tags,
		Meta: map[string]string{
			"environment": cfg.Observability.Environment,
			"grpc_port":   fmt.Sprintf("%d", cfg.GRPC.Port),
		},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s/health", net.JoinHostPort(host, fmt.Sprintf("%d", cfg.HTTP.Port))),
			Interval:                       cfg.Discovery.CheckInterval.String(),
			Timeout:                        cfg.Discovery.CheckTimeout.String(),
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

func advertiseHost(bind string) string {
	if bind != "" && bind != "0.0.0.0" && bind != "::" {
		return bind
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "127.0.0.1"
}

// NewAgent returns the Consul agent client for addr.
func NewAgent(addr string) (Agent, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = addr
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}
	return client.Agent(), nil
}

// Run registers on start and deregisters on stop when discovery is enabled.
func Run(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) error {
	if !cfg.Discovery.Enabled {
		return nil
	}
	agent, err := NewAgent(cfg.Discovery.ConsulAddr)
	if err != nil {
		return err
	}
	Bind(lc, agent, Registration(cfg), logger)
	return nil
}

// Bind ties registration of reg with agent to the Fx lifecycle.
func Bind(lc fx.Lifecycle, agent Agent, reg *api.AgentServiceRegistration, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := agent.ServiceRegister(reg); err != nil {
				return fmt.Errorf("register service %s: %w", reg.ID, err)
			}
			logger.Info("registered service in consul",
				zap.String("id", reg.ID),
				zap.String("address", reg.Address),
				zap.Int("port", reg.Port),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := agent.ServiceDeregister(reg.ID); err != nil {
				logger.Warn("consul deregistration failed", zap.String("id", reg.ID), zap.Error(err))
				return nil
			}
			logger.Info("deregistered service from consul", zap.String("id", reg.ID))
			return nil
		},
	})
}
