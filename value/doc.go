// Package value defines the words stored in heap object slots.
//
// A Value is nil, an immediate scalar or a Ref. The discriminant is explicit;
// nothing is inferred from bit patterns:
//
//	v := value.Immediate(42)
//	v.IsRef() // false
//
//	r := value.MakeRef(3, 1)
//	value.Of(r).IsRef() // true
//
// Refs are generation-checked handles into a collector's slot arena. A Ref
// whose slot has been freed and reused carries an older generation and no
// longer resolves.
package value
