// Package models defines the plain data shared by the order-fulfillment engine.
//
// # Ownership
//
// The models carry no behavior beyond copying and simple lookups:
//   - Order owns its OrderLines. Only the order aggregate mutates them.
//   - SplitBill owns its SplitBillParts. Only the settlement engine mutates them.
//   - Ingredient stock is shared state. Only the inventory ledger mutates it.
//
// Components hand these values across package boundaries as copies, so a reader
// holding an Order or SplitBill never observes a concurrent mutation.
//
// # Money
//
// Every monetary amount and stock quantity is a fixed-point decimal.Decimal.
// Floating point is never used for money.
//
// # Identifiers
//
// IDs are UUID strings; relationships are expressed by ID rather than pointers.
package models
