package validator

import "strings"

// CheckSparkShape verifies the code looks like a Spark ETL job: it must
// create a SparkSession and perform at least one dataframe read.
func CheckSparkShape(code string) []Violation {
	var violations []Violation

	if !strings.Contains(code, "SparkSession") {
		violations = append(violations, Violation{
			Kind:   MissingSparkEntry,
			Detail: "missing SparkSession - not a valid Spark job",
			Line:   1,
		})
	}

	if !strings.Contains(code, "read.") && !strings.Contains(code, ".read.") {
		violations = append(violations, Violation{
			Kind:   MissingReadOp,
			Detail: "missing dataframe read operation",
			Line:   1,
		})
	}

	return violations
}
