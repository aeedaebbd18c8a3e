package program

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	oerrors "github.com/opmodel/modprog/internal/errors"
	rt "github.com/opmodel/modprog/pkg/program"
)

// ParseDiscriminator parses the argument of a discriminator directive: a
// comma-separated list of byte values.
func ParseDiscriminator(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty discriminator")
	}
	parts := strings.Split(s, ",")
	out := make([]byte, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid discriminator byte %q", strings.TrimSpace(part))
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// Discriminator returns the directive override, or the sighash of the name.
func (i *Instruction) Discriminator() ([]byte, error) {
	if i.DiscriminatorDirective == "" {
		return rt.SighashDiscriminator(i.Name), nil
	}
	d, err := ParseDiscriminator(i.DiscriminatorDirective)
	if err != nil {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("instruction %s: %v", i.Name, err), "", "discriminator",
			"Write the discriminator as comma-separated bytes, e.g. //modprog:discriminator 1,2,3,4")
	}
	return d, nil
}

// Validate checks a merged program: instruction names are unique, no
// discriminator is a prefix of another, and at most one fallback exists.
func Validate(desc *Descriptor) error {
	if n := len(desc.Fallbacks); n > 1 {
		return oerrors.NewValidationError(
			fmt.Sprintf("program declares %d fallback handlers", n), "", "", "Keep a single fallback in the primary module")
	}

	seen := make(map[string]bool, len(desc.Instructions))
	discs := make([][]byte, len(desc.Instructions))
	for i, ins := range desc.Instructions {
		if seen[ins.Name] {
			return oerrors.NewValidationError(
				fmt.Sprintf("duplicate instruction %s", ins.Name), "", "",
				"Give the module a distinct prefix")
		}
		seen[ins.Name] = true

		d, err := ins.Discriminator()
		if err != nil {
			return err
		}
		for j := 0; j < i; j++ {
			if bytes.HasPrefix(d, discs[j]) || bytes.HasPrefix(discs[j], d) {
				return oerrors.NewValidationError(
					fmt.Sprintf("instructions %s and %s have conflicting discriminators", desc.Instructions[j].Name, ins.Name),
					"", "discriminator", "")
			}
		}
		discs[i] = d
	}
	return nil
}
