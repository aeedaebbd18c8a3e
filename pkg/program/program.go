// Package program is the runtime surface shared by modular programs and the
// code modprog generates for them.
//
// Instruction handlers take a *Context[A] as their first parameter, where A is
// the accounts type the instruction operates on. Generated primary modules
// export an ordered Registry that maps discriminators to relay handlers.
package program

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"unicode"
)

// DiscriminatorSize is the length of a default sighash discriminator.
const DiscriminatorSize = 8

// Context is the execution context handed to every instruction.
type Context[A any] struct {
	// ProgramID identifies the program being executed.
	ProgramID [32]byte

	// Accounts holds the validated accounts of the instruction.
	Accounts A

	// Remaining carries opaque extra inputs not described by Accounts.
	Remaining [][]byte
}

// FallbackContext is the execution context of a fallback handler.
type FallbackContext struct {
	ProgramID [32]byte
	Data      []byte
}

// Instruction describes one registered entry point.
type Instruction struct {
	// Name is the relay name in the primary module.
	Name string

	// Discriminator prefixes the instruction data.
	Discriminator []byte

	// Handler is the relay function value.
	Handler any
}

// Registry lists instructions in registration order.
type Registry []Instruction

// Lookup returns the instruction whose discriminator prefixes data.
func (r Registry) Lookup(data []byte) (*Instruction, bool) {
	for i := range r {
		d := r[i].Discriminator
		if len(d) > 0 && bytes.HasPrefix(data, d) {
			return &r[i], true
		}
	}
	return nil, false
}

// Names returns instruction names in registration order.
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, ins := range r {
		names[i] = ins.Name
	}
	return names
}

// SighashDiscriminator derives the default discriminator of an instruction:
// the first eight bytes of sha256("global:" + snake_case(name)).
func SighashDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + SnakeCase(name)))
	out := make([]byte, DiscriminatorSize)
	copy(out, sum[:DiscriminatorSize])
	return out
}

// SnakeCase converts an identifier to snake_case. Existing underscores are
// kept and never doubled.
//
//	SnakeCase("Instr")        == "instr"
//	SnakeCase("bar_Instr")    == "bar_instr"
//	SnakeCase("InitHTTPPool") == "init_http_pool"
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
