// Package core defines core types.
package core

// Column names shared by the CSV tables the tools read and write.
const (
	ColTime          = "Time"
	ColNo            = "No"
	ColPacketNo      = "Pckt_No"
	ColSourceIP      = "SourceIP"
	ColDestinationIP = "DestinationIP"
	ColSourcePort    = "SourcePort"
	ColDestPort      = "DestinationPort"
	ColSeq           = "SequenceNumber"
	ColAck           = "AcknowledgementNumber"
	ColProtocol      = "Protocol"
	ColLength        = "Length"
	ColLoad          = "Load"
	ColPayload       = "Payload"
	ColData          = "Data"
	ColPacketCount   = "PacketCount"
	ColUniquePorts   = "UniquePorts"

	// Audit table
	ColPrivateIP     = "PrivateIP"
	ColPublicIP      = "PublicIP"
	ColReplacementIP = "ReplacementIP"
)

// AuditHeader is the header row of the audit table.
var AuditHeader = []string{ColPrivateIP, ColPublicIP, ColReplacementIP}

// MetadataHeader is the header row of the per-packet metadata table.
var MetadataHeader = []string{
	ColTime, ColNo, ColSourceIP, ColDestinationIP,
	ColSourcePort, ColDestPort, ColSeq, ColAck,
	ColProtocol, ColLength,
}

// PayloadHeader is the header row of the per-packet payload table.
var PayloadHeader = []string{ColNo, ColLength, ColPayload}

// DataHeader is the header row of the payload-only data table.
var DataHeader = []string{ColTime, ColPacketNo, ColData}
