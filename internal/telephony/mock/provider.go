package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/acarcay/voice-agent/internal/config"
	"github.com/acarcay/voice-agent/internal/telephony"
)

// Provider simulates outbound call behaviour in place of a real SIP trunk.
type Provider struct {
	successRate float64
	rng         *rand.Rand
}

// NewProvider constructs a mock provider with deterministic randomness.
func NewProvider(cfg config.CallBridgeConfig) *Provider {
	rate := cfg.SuccessRate
	if rate <= 0 || rate > 1 {
		rate = 0.8
	}
	return &Provider{
		successRate: rate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PlaceCall simulates connection time and a probabilistic pickup.
func (p *Provider) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.Result, error) {
	duration := time.Duration(1+p.rng.Intn(3)) * time.Second

	select {
	case <-ctx.Done():
		return telephony.Result{Duration: duration, Retryable: true, Error: ctx.Err().Error()}, ctx.Err()
	case <-time.After(duration):
	}

	if p.rng.Float64() <= p.successRate {
		return telephony.Result{Connected: true, Duration: duration}, nil
	}

	return telephony.Result{Duration: duration, Retryable: true, Error: "no answer"}, nil
}
