// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package max31855

// ToFahrenheit converts whole degrees Celsius to whole degrees Fahrenheit using integer
// arithmetic only, rounding to the nearest degree.
//
// F = (9C + 160) / 5. The remainder of the division is a multiple of 1/5 of a degree so
// it can never be exactly one half: a remainder of 3 or 4 rounds up.
func ToFahrenheit(celsius int) int {
	n := 9*celsius + 160
	q, r := n/5, n%5
	if r < 0 { // floor division so negative temperatures round the same way
		q, r = q-1, r+5
	}
	if r >= 3 {
		q++
	}
	return q
}
