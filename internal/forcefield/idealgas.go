package forcefield

import "github.com/san-kum/ljmetad/internal/dynamo"

// IdealGas treats every interaction as zero. It is the inner field used when
// replaying a stored trajectory so only bias quantities are measured.
type IdealGas struct{}

func (IdealGas) Evaluate(pos dynamo.Frame) dynamo.Result {
	return dynamo.ZeroResult(len(pos))
}
