package patch

// SeedCode is the region's code before its first modification.
const SeedCode = `package main

import "fmt"

// ++-------- TIMESTAMPS --------++
// timestamp: 2025-04-08 10:40:11
// ++-------- TIMESTAMPS --------++

// Mind holds everything Tai has written for itself.
type Mind struct {
	Name string
}

// Describe reports what the region currently knows how to do.
func (m Mind) Describe() string {
	return fmt.Sprintf("%s has no learned abilities yet.", m.Name)
}
`
