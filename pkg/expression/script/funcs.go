package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/goliatone/go-instrument/pkg/expression"
)

type function struct {
	name    string
	minArgs int
	maxArgs int // -1 for variadic
	call    func(ctx expression.Context, args []node) (any, error)
}

func (f function) checkArity(n int) error {
	if n < f.minArgs || (f.maxArgs >= 0 && n > f.maxArgs) {
		return fmt.Errorf("expression/script: %s: unexpected argument count %d", f.name, n)
	}
	return nil
}

var functions = map[string]function{
	"isnull": {name: "isnull", minArgs: 1, maxArgs: 1, call: fnIsNull},
	"if":     {name: "if", minArgs: 3, maxArgs: 3, call: fnIf},
	"round":  {name: "round", minArgs: 1, maxArgs: 2, call: fnRound},
	"abs":    {name: "abs", minArgs: 1, maxArgs: 1, call: fnAbs},
	"sum":    {name: "sum", minArgs: 1, maxArgs: -1, call: fnSum},
	"min":    {name: "min", minArgs: 1, maxArgs: -1, call: fnMin},
	"max":    {name: "max", minArgs: 1, maxArgs: -1, call: fnMax},
}

func lookupFunction(name string) (function, bool) {
	fn, ok := functions[strings.ToLower(name)]
	return fn, ok
}

// isnull absorbs readiness failures of its argument, which makes it the one
// way to branch on unanswered fields without failing the whole rule.
func fnIsNull(ctx expression.Context, args []node) (any, error) {
	value, err := args[0].eval(ctx)
	if err != nil {
		if expression.IsReadinessGap(err) {
			return true, nil
		}
		return nil, err
	}
	return value == nil, nil
}

func fnIf(ctx expression.Context, args []node) (any, error) {
	cond, err := args[0].eval(ctx)
	if err != nil {
		return nil, err
	}
	if expression.Truthy(cond) {
		return args[1].eval(ctx)
	}
	return args[2].eval(ctx)
}

func fnRound(ctx expression.Context, args []node) (any, error) {
	nums, err := evalNumbers("round", ctx, args)
	if err != nil {
		return nil, err
	}
	places := 0.0
	if len(nums) == 2 {
		places = nums[1]
	}
	scale := math.Pow(10, places)
	return math.Floor(nums[0]*scale+0.5) / scale, nil
}

func fnAbs(ctx expression.Context, args []node) (any, error) {
	nums, err := evalNumbers("abs", ctx, args)
	if err != nil {
		return nil, err
	}
	return math.Abs(nums[0]), nil
}

func fnSum(ctx expression.Context, args []node) (any, error) {
	nums, err := evalNumbers("sum", ctx, args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func fnMin(ctx expression.Context, args []node) (any, error) {
	nums, err := evalNumbers("min", ctx, args)
	if err != nil {
		return nil, err
	}
	out := nums[0]
	for _, n := range nums[1:] {
		out = math.Min(out, n)
	}
	return out, nil
}

func fnMax(ctx expression.Context, args []node) (any, error) {
	nums, err := evalNumbers("max", ctx, args)
	if err != nil {
		return nil, err
	}
	out := nums[0]
	for _, n := range nums[1:] {
		out = math.Max(out, n)
	}
	return out, nil
}

func evalNumbers(name string, ctx expression.Context, args []node) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, arg := range args {
		value, err := arg.eval(ctx)
		if err != nil {
			return nil, err
		}
		num, ok := coerceNumber(value)
		if !ok {
			return nil, fmt.Errorf("expression/script: %s: non-numeric argument %q", name, expression.DisplayString(value))
		}
		out = append(out, num)
	}
	return out, nil
}
