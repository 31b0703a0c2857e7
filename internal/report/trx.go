package report

import (
	"bytes"
	"encoding/xml"
)

// trxDocument mirrors the subset of the TRX schema this converter
// cares about. encoding/xml never resolves DTDs or external entities,
// so no extra hardening is needed beyond decoding into this shape.
type trxDocument struct {
	XMLName xml.Name         `xml:"TestRun"`
	ID      string           `xml:"id,attr"`
	Times   trxTimes         `xml:"Times"`
	Summary trxResultSummary `xml:"ResultSummary"`
	Defs    trxTestDefs      `xml:"TestDefinitions"`
	Results trxResults       `xml:"Results"`
}

type trxTimes struct {
	Creation string `xml:"creation,attr"`
	Start    string `xml:"start,attr"`
	Finish   string `xml:"finish,attr"`
}

type trxResultSummary struct {
	Outcome  string      `xml:"outcome,attr"`
	Counters trxCounters `xml:"Counters"`
	Output   trxOutput   `xml:"Output"`
}

type trxCounters struct {
	Total        int `xml:"total,attr"`
	Executed     int `xml:"executed,attr"`
	Passed       int `xml:"passed,attr"`
	Failed       int `xml:"failed,attr"`
	NotExecuted  int `xml:"notExecuted,attr"`
	Error        int `xml:"error,attr"`
	Timeout      int `xml:"timeout,attr"`
	Aborted      int `xml:"aborted,attr"`
	Inconclusive int `xml:"inconclusive,attr"`
}

type trxOutput struct {
	StdOut string `xml:"StdOut"`
}

type trxTestDefs struct {
	UnitTests []trxUnitTest `xml:"UnitTest"`
}

type trxUnitTest struct {
	ID     string        `xml:"id,attr"`
	Name   string        `xml:"name,attr"`
	Method trxTestMethod `xml:"TestMethod"`
}

type trxTestMethod struct {
	ClassName           string `xml:"className,attr"`
	FullyQualifiedName string `xml:"name,attr"`
}

type trxResults struct {
	UnitTestResults []trxUnitTestResult `xml:"UnitTestResult"`
}

type trxUnitTestResult struct {
	ExecutionID string          `xml:"executionId,attr"`
	TestID      string          `xml:"testId,attr"`
	TestName    string          `xml:"testName,attr"`
	Outcome     string          `xml:"outcome,attr"`
	Duration    string          `xml:"duration,attr"`
	StartTime   string          `xml:"startTime,attr"`
	EndTime     string          `xml:"endTime,attr"`
	Output      trxResultOutput `xml:"Output"`
}

type trxResultOutput struct {
	ErrorInfo trxErrorInfo `xml:"ErrorInfo"`
}

type trxErrorInfo struct {
	Message    string `xml:"Message"`
	StackTrace string `xml:"StackTrace"`
}

func parseTRX(data []byte) (trxDocument, error) {
	var doc trxDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return trxDocument{}, err
	}
	return doc, nil
}
