package utils

import (
	"fmt"
	"strings"
)

// FormatCurrency memformat angka ke format mata uang Rupiah,
// contoh: 15000.5 -> "Rp 15.000,50"
func FormatCurrency(amount float64) string {
	formatted := fmt.Sprintf("%.2f", amount)

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	// Tambahkan pemisah ribuan
	var result []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{integerPart[start:i]}, result...)
	}

	return "Rp " + strings.Join(result, ".") + "," + decimalPart
}
