package relay

import "github.com/opmodel/modprog/internal/merge"

// DefaultWrapperName is the wrapper relays use in wrapped mode when their
// module names none. A primary module may declare its own.
const DefaultWrapperName = "relayInstruction"

const defaultWrapperSource = `func relayInstruction[F any](fn F) F {
	return fn
}
`

// DefaultWrapperDecl returns the injected default wrapper.
func DefaultWrapperDecl() (merge.Decl, error) {
	fset, decl, err := parseFunc(defaultWrapperSource)
	if err != nil {
		return merge.Decl{}, err
	}
	return merge.Decl{
		Name: DefaultWrapperName,
		Doc:  []string{"// relayInstruction is the default relay wrapper. It forwards calls unchanged."},
		Func: decl,
		Fset: fset,
	}, nil
}
