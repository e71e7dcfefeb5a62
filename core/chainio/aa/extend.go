package aa

import (
	"reflect"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Capabilities is a named record of extra operations attached to an account,
// e.g. plugin management actions.
type Capabilities map[string]any

// ExtendedAccount is an Account plus the capabilities merged in by Extend.
type ExtendedAccount struct {
	*Account
	capabilities Capabilities
}

// baseMethodNames returns the lower-cased method names of t.
func baseMethodNames(t reflect.Type) map[string]struct{} {
	names := make(map[string]struct{}, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names[strings.ToLower(t.Method(i).Name)] = struct{}{}
	}
	return names
}

var extendedAccountMethods = baseMethodNames(reflect.TypeOf(&ExtendedAccount{}))

func omitNames(c Capabilities, names map[string]struct{}) Capabilities {
	return lo.OmitBy(c, func(name string, _ any) bool {
		_, clash := names[strings.ToLower(name)]
		return clash
	})
}

// OmitMethods drops the capabilities whose names, ignoring case, are methods
// of base.
func (c Capabilities) OmitMethods(base any) Capabilities {
	return omitNames(c, baseMethodNames(reflect.TypeOf(base)))
}

func (c Capabilities) withoutBase() Capabilities {
	return omitNames(c, extendedAccountMethods)
}

// Extend attaches the capabilities built by fn. Names that collide with an
// account method, ignoring case, are dropped so the base behaviour cannot be
// shadowed.
func (a *Account) Extend(fn func(*Account) Capabilities) *ExtendedAccount {
	return (&ExtendedAccount{Account: a, capabilities: Capabilities{}}).Extend(fn)
}

// Extend chains another extension. Later extensions win over earlier ones
// but never over account methods.
func (e *ExtendedAccount) Extend(fn func(*Account) Capabilities) *ExtendedAccount {
	merged := lo.Assign(e.capabilities, fn(e.Account).withoutBase())
	return &ExtendedAccount{Account: e.Account, capabilities: merged}
}

func (e *ExtendedAccount) Capability(name string) (any, bool) {
	v, ok := e.capabilities[name]
	return v, ok
}

// CapabilityNames lists the attached capabilities in sorted order.
func (e *ExtendedAccount) CapabilityNames() []string {
	names := lo.Keys(e.capabilities)
	slices.Sort(names)
	return names
}
