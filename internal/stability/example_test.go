package stability_test

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

func ExampleController_Mode() {
	c, err := stability.New(fix.New[fix.N2](150), fix.New[fix.N2](120))
	if err != nil {
		panic(err)
	}
	for _, cr := range []uint64{1_800_000_000, 1_350_000_000, 1_100_000_000, 1_050_000_000, 990_000_000} {
		fmt.Println(fix.New[fix.N9](cr), c.Mode(fix.New[fix.N9](cr)))
	}
	// Output:
	// 1.800000000 Normal
	// 1.350000000 Mode1
	// 1.100000000 Mode2
	// 1.050000000 Mode2
	// 0.990000000 Depeg
}
