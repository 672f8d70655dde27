package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// AddressingPolicy declares which identity fields an event type must carry.
type AddressingPolicy string

const (
	// AddressingGame marks events scoped to the game as a whole.
	AddressingGame AddressingPolicy = "game"
	// AddressingSide marks events that must carry a side.
	AddressingSide AddressingPolicy = "side"
	// AddressingPlayer marks events that must carry a side and a player.
	AddressingPlayer AddressingPolicy = "player"
)

// Registry validation errors.
var (
	// ErrUnknownType indicates the event type has no registered definition.
	ErrUnknownType = errors.New("event type is not registered")
	// ErrDuplicateDefinition indicates the type is already registered.
	ErrDuplicateDefinition = errors.New("event type is already registered")
	// ErrSideRequired indicates a side-scoped event without a side.
	ErrSideRequired = errors.New("side is required for this event type")
	// ErrPlayerRequired indicates a player-scoped event without a player.
	ErrPlayerRequired = errors.New("player id is required for this event type")
	// ErrInvalidPayload indicates the payload failed the type's structural check.
	ErrInvalidPayload = errors.New("payload is invalid for this event type")
)

// Definition describes one registered event type.
type Definition struct {
	// Type is the semantic name being registered.
	Type Type
	// Addressing declares the identity fields the envelope must carry.
	Addressing AddressingPolicy
	// CheckPayload validates the payload structure, when set.
	CheckPayload func(raw []byte) error
}

// Registry holds the set of event types accepted for append.
type Registry struct {
	defs map[Type]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Type]Definition)}
}

// Register adds a definition to the registry.
func (r *Registry) Register(def Definition) error {
	if !def.Type.IsValid() {
		return fmt.Errorf("definition type is required")
	}
	if def.Addressing == "" {
		def.Addressing = AddressingGame
	}
	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// Definition returns the registered definition for a type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	def, ok := r.defs[t]
	return def, ok
}

// ValidateForAppend checks an already normalized event against the registry.
func (r *Registry) ValidateForAppend(evt Event) (Definition, error) {
	def, ok := r.defs[evt.Type]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownType, evt.Type)
	}

	switch def.Addressing {
	case AddressingSide:
		if !evt.Side.IsValid() {
			return Definition{}, fmt.Errorf("%w: %s", ErrSideRequired, evt.Type)
		}
	case AddressingPlayer:
		if !evt.Side.IsValid() {
			return Definition{}, fmt.Errorf("%w: %s", ErrSideRequired, evt.Type)
		}
		if evt.PlayerID == "" {
			return Definition{}, fmt.Errorf("%w: %s", ErrPlayerRequired, evt.Type)
		}
	}

	if def.CheckPayload != nil {
		if err := def.CheckPayload(evt.PayloadJSON); err != nil {
			return Definition{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, evt.Type, err)
		}
	}

	return def, nil
}

// Default returns a registry with every built-in event type registered.
func Default() *Registry {
	r := NewRegistry()
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinDefinitions() []Definition {
	return []Definition{
		{Type: TypeShotMade, Addressing: AddressingPlayer, CheckPayload: checkShotPayload},
		{Type: TypeShotMissed, Addressing: AddressingPlayer, CheckPayload: checkShotPayload},
		{Type: TypeFreeThrowMade, Addressing: AddressingPlayer, CheckPayload: checkFreeThrowPayload},
		{Type: TypeFreeThrowMissed, Addressing: AddressingPlayer, CheckPayload: checkFreeThrowPayload},
		{Type: TypeRebound, Addressing: AddressingPlayer},
		{Type: TypeAssist, Addressing: AddressingPlayer},
		{Type: TypeSteal, Addressing: AddressingPlayer},
		{Type: TypeBlock, Addressing: AddressingPlayer},
		{Type: TypeTurnover, Addressing: AddressingPlayer},
		{Type: TypePossessionStart, Addressing: AddressingSide, CheckPayload: checkPossessionStartPayload},
		{Type: TypePossessionEnd, Addressing: AddressingSide, CheckPayload: checkPossessionEndPayload},
		{Type: TypeFoul, Addressing: AddressingPlayer},
		{Type: TypeSubIn, Addressing: AddressingPlayer},
		{Type: TypeSubOut, Addressing: AddressingPlayer},
		{Type: TypePeriodStart, CheckPayload: checkPeriodPayload},
		{Type: TypePeriodEnd, CheckPayload: checkPeriodPayload},
		{Type: TypeGameStart, CheckPayload: checkGameStartPayload},
		{Type: TypeGameEnd},
	}
}

func checkShotPayload(raw []byte) error {
	var payload ShotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Points != 2 && payload.Points != 3 {
		return fmt.Errorf("points must be 2 or 3, got %d", payload.Points)
	}
	return nil
}

func checkFreeThrowPayload(raw []byte) error {
	var payload FreeThrowPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Attempt < 1 {
		return fmt.Errorf("attempt must be positive, got %d", payload.Attempt)
	}
	if payload.Of < payload.Attempt {
		return fmt.Errorf("attempt %d exceeds awarded %d", payload.Attempt, payload.Of)
	}
	return nil
}

func checkPossessionStartPayload(raw []byte) error {
	var payload PossessionStartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PossessionSeq < 1 {
		return fmt.Errorf("possession seq must be positive, got %d", payload.PossessionSeq)
	}
	return nil
}

func checkPossessionEndPayload(raw []byte) error {
	var payload PossessionEndPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.PossessionSeq < 1 {
		return fmt.Errorf("possession seq must be positive, got %d", payload.PossessionSeq)
	}
	if payload.Result == "" {
		return fmt.Errorf("result is required")
	}
	if payload.Points < 0 {
		return fmt.Errorf("points must not be negative, got %d", payload.Points)
	}
	return nil
}

func checkPeriodPayload(raw []byte) error {
	var payload PeriodPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.Period < 1 {
		return fmt.Errorf("period must be positive, got %d", payload.Period)
	}
	return nil
}

func checkGameStartPayload(raw []byte) error {
	var payload GameStartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if payload.HomeTeamID == "" || payload.AwayTeamID == "" {
		return fmt.Errorf("home and away team ids are required")
	}
	return nil
}
