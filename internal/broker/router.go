package broker

import (
	"context"

	"github.com/rs/zerolog"

	"chat-broker/internal/models"
)

// TeamLookup reports whether two participants share a team. A lookup error
// is treated by the router as "no relation", never surfaced to the sender.
type TeamLookup interface {
	SameTeam(ctx context.Context, a, b string) (bool, error)
}

// PositionLookup resolves a participant's current world position. A missing
// position simply excludes the participant from proximity delivery.
type PositionLookup interface {
	Position(id string) (models.Position, bool)
}

// TeamFallback selects who receives a team message when the sender's team
// cannot be resolved. This is an explicit policy decision, not an implicit
// branch: the upstream behavior of silently broadcasting to everyone defeats
// team isolation, so the default is to deliver to nobody.
type TeamFallback string

const (
	TeamFallbackNone TeamFallback = "none"
	TeamFallbackAll  TeamFallback = "all"
)

// RouteFunc computes the ordered delivery set for one channel.
type RouteFunc func(ctx context.Context, msg models.Message, settings models.ChatSettings) []string

// Router resolves a validated message to its ordered recipient set. Each
// channel tag owns one strategy; strategies can be replaced per channel
// without touching the dispatch logic.
type Router struct {
	registry     *Registry
	teams        TeamLookup
	positions    PositionLookup
	teamFallback TeamFallback
	strategies   map[models.Channel]RouteFunc
	log          zerolog.Logger
}

// NewRouter builds a router with the default strategy per channel.
func NewRouter(registry *Registry, teams TeamLookup, positions PositionLookup, teamFallback TeamFallback, logger zerolog.Logger) *Router {
	r := &Router{
		registry:     registry,
		teams:        teams,
		positions:    positions,
		teamFallback: teamFallback,
		log:          logger.With().Str("component", "router").Logger(),
	}
	r.strategies = map[models.Channel]RouteFunc{
		models.ChannelGlobal:    r.routeEveryone,
		models.ChannelSystem:    r.routeEveryone,
		models.ChannelTeam:      r.routeTeam,
		models.ChannelDirect:    r.routeDirect,
		models.ChannelProximity: r.routeProximity,
		models.ChannelCustom:    r.routeEveryone,
	}
	return r
}

// SetStrategy overrides the routing strategy for one channel. Intended for
// game-specific custom-channel policies.
func (r *Router) SetStrategy(channel models.Channel, fn RouteFunc) {
	if fn == nil {
		return
	}
	r.strategies[channel] = fn
}

// Route returns the delivery set for the message in delivery order. Unknown
// channels fall back to global delivery.
func (r *Router) Route(ctx context.Context, msg models.Message, settings models.ChatSettings) []string {
	fn, ok := r.strategies[msg.Channel]
	if !ok {
		fn = r.routeEveryone
	}
	return fn(ctx, msg, settings)
}

func (r *Router) routeEveryone(_ context.Context, _ models.Message, _ models.ChatSettings) []string {
	return r.registry.All()
}

// routeTeam delivers to every registered participant sharing the sender's
// team, the sender included. Resolvability is probed with SameTeam(sender,
// sender): false means the sender has no team and the fallback policy
// applies.
func (r *Router) routeTeam(ctx context.Context, msg models.Message, settings models.ChatSettings) []string {
	if msg.SenderID == "" || r.teams == nil {
		return nil
	}

	resolvable, err := r.teams.SameTeam(ctx, msg.SenderID, msg.SenderID)
	if err != nil {
		r.log.Warn().Err(err).Str("sender", msg.SenderID).Msg("team lookup failed")
		resolvable = false
	}
	if !resolvable {
		if r.teamFallback == TeamFallbackAll {
			return r.routeEveryone(ctx, msg, settings)
		}
		return nil
	}

	var recipients []string
	for _, id := range r.registry.All() {
		same, err := r.teams.SameTeam(ctx, msg.SenderID, id)
		if err != nil {
			r.log.Warn().Err(err).Str("candidate", id).Msg("team lookup failed")
			continue
		}
		if same {
			recipients = append(recipients, id)
		}
	}
	return recipients
}

// routeDirect delivers to the target then the sender, so the sender sees
// their own outgoing message. A target that has since unregistered is
// silently skipped; the message stays in history either way.
func (r *Router) routeDirect(_ context.Context, msg models.Message, _ models.ChatSettings) []string {
	var recipients []string
	if r.registry.IsRegistered(msg.DirectTarget) {
		recipients = append(recipients, msg.DirectTarget)
	}
	if msg.SenderID != msg.DirectTarget && r.registry.IsRegistered(msg.SenderID) {
		recipients = append(recipients, msg.SenderID)
	}
	return recipients
}

// routeProximity includes every registered participant whose squared
// distance to the sender is within the configured radius. The sender must
// have a resolvable position; otherwise nobody receives the message.
func (r *Router) routeProximity(_ context.Context, msg models.Message, settings models.ChatSettings) []string {
	if msg.SenderID == "" || r.positions == nil {
		return nil
	}
	origin, ok := r.positions.Position(msg.SenderID)
	if !ok {
		return nil
	}

	radiusSq := settings.ProximityRadius * settings.ProximityRadius
	var recipients []string
	for _, id := range r.registry.All() {
		pos, ok := r.positions.Position(id)
		if !ok {
			continue
		}
		dx := pos.X - origin.X
		dy := pos.Y - origin.Y
		dz := pos.Z - origin.Z
		if dx*dx+dy*dy+dz*dz <= radiusSq {
			recipients = append(recipients, id)
		}
	}
	return recipients
}
