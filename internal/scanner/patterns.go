package scanner

import "regexp"

// pattern couples a compiled expression with the threat it indicates.
type pattern struct {
	re             *regexp.Regexp
	typ            ThreatType
	severity       Severity
	description    string
	recommendation string
}

func mustPattern(expr string, typ ThreatType, severity Severity, description, recommendation string) pattern {
	return pattern{
		re:             regexp.MustCompile(expr),
		typ:            typ,
		severity:       severity,
		description:    description,
		recommendation: recommendation,
	}
}

// threatPatterns is the built-in pattern catalogue. Matching is heuristic and
// advisory; the scanner reports every hit together with the matched line so
// reviewers can dismiss false positives.
var threatPatterns = []pattern{
	// System command execution.
	mustPattern(`(?i)\bexec\.Command\s*\(|\bos/exec\b|\bsubprocess\.(run|call|Popen)|\bos\.system\s*\(`,
		ThreatSystemCommand, SeverityCritical,
		"spawns an operating system process",
		"modules must not execute system commands; request a host capability instead"),
	mustPattern(`(?i)\bsyscall\.(Exec|ForkExec)\b|/bin/(sh|bash)\b`,
		ThreatSystemCommand, SeverityCritical,
		"invokes a shell or raw syscall exec",
		"remove shell invocation"),

	// Filesystem access.
	mustPattern(`(?i)\bos\.(Remove|RemoveAll|Rename|Chmod|Chown)\s*\(`,
		ThreatFilesystem, SeverityHigh,
		"mutates the filesystem outside the sandbox",
		"use the host storage API"),
	mustPattern(`(?i)\b(os\.Open|os\.Create|ioutil\.(ReadFile|WriteFile)|os\.(ReadFile|WriteFile))\s*\(|\bopen\s*\([^)]*['"]\s*/(etc|proc|sys)/`,
		ThreatFilesystem, SeverityMedium,
		"reads or writes files directly",
		"declare filesystem capability in the manifest"),

	// Network access.
	mustPattern(`(?i)\bnet\.(Dial|Listen)\s*\(|\bhttp\.(Get|Post|NewRequest)\s*\(|\burllib|requests\.(get|post)\b`,
		ThreatNetwork, SeverityMedium,
		"opens network connections",
		"declare network capability in the manifest"),
	mustPattern(`(?i)\bnet\.ListenPacket\s*\(|\bsocket\s*\.\s*socket\b|raw socket`,
		ThreatNetwork, SeverityHigh,
		"opens low-level sockets",
		"low-level sockets are never granted to modules"),

	// Code injection primitives.
	mustPattern(`(?i)\beval\s*\(|\bexec\s*\(|\bcompile\s*\(|__import__\s*\(|\breflect\.Value\.Call\b`,
		ThreatCodeInjection, SeverityCritical,
		"evaluates dynamically constructed code",
		"dynamic evaluation is forbidden"),
	mustPattern(`(?i)\bpickle\.loads?\b|\bmarshal\.loads?\b|\byaml\.load\s*\((?:[^)]*Loader\s*=\s*None)?[^)]*\)`,
		ThreatCodeInjection, SeverityHigh,
		"deserialises untrusted data into executable objects",
		"use a safe decoder"),

	// Backdoor vocabulary.
	mustPattern(`(?i)\b(backdoor|reverse[_ ]?shell|bind[_ ]?shell|keylogger|rootkit)\b`,
		ThreatBackdoor, SeverityCritical,
		"contains backdoor vocabulary",
		"review manually before any admission"),
	mustPattern(`(?i)\b(exfiltrat\w+|credential[_ ]?steal\w*|password[_ ]?dump\w*)\b`,
		ThreatBackdoor, SeverityHigh,
		"contains data exfiltration vocabulary",
		"review manually before any admission"),

	// Crypto mining vocabulary.
	mustPattern(`(?i)\b(stratum\+tcp|cryptonight|minergate|xmrig|coinhive|hashrate)\b`,
		ThreatCryptoMining, SeverityHigh,
		"contains crypto-mining vocabulary",
		"mining is forbidden in host modules"),
	mustPattern(`(?i)\b(monero|bitcoin|ethereum)[_ ]?(wallet|miner|address)\b`,
		ThreatCryptoMining, SeverityMedium,
		"references mining wallets",
		"review payment-related code"),
}
