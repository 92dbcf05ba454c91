package gpio

import "fmt"

// boardToBCM maps Raspberry Pi 40-pin header positions to BCM GPIO numbers.
// Power, ground and ID EEPROM pins are absent.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19, 36: 16, 37: 26,
	38: 20, 40: 21,
}

// BoardToBCM translates a physical header pin to its BCM GPIO number.
func BoardToBCM(pin int) (int, error) {
	bcm, ok := boardToBCM[pin]
	if !ok {
		return 0, fmt.Errorf("board pin %d is not a GPIO pin", pin)
	}
	return bcm, nil
}
