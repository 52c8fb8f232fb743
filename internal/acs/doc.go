// Package acs turns raw ACS5 profile responses into a long-format tract table.
//
// The stages run left to right and never mutate their inputs:
//
//	[]RawStateResponse -> AssembleWide -> *WideTable
//	*WideTable -> ExtractGeography -> []GeographyRecord
//	*WideTable -> Melt -> []VariableValue -> Classify -> []ClassifiedVariable
//	Join(classified, geography, state names) -> []FinalRecord
//
// Pipeline wires the stages to a DataSource and a LabelResolver.
package acs
