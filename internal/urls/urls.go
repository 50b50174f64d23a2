package urls

// Documentation URLs for guides and troubleshooting.
// All URLs point to the documentation site at https://muurk.github.io/ledble/

// GatewaySetup is the gateway daemon setup guide, covering the serial
// radio wiring, mDNS announcement, and firewall configuration.
const GatewaySetup = "https://muurk.github.io/ledble/gateway-setup/"

// ProtocolReference documents the advertisement layouts, command
// templates, and the state response format.
const ProtocolReference = "https://muurk.github.io/ledble/protocol/"

// TroubleshootingGuide provides solutions to common issues encountered
// when discovering gateways and connecting to devices.
const TroubleshootingGuide = "https://muurk.github.io/ledble/troubleshooting/"

// ContributingProducts explains how to contribute capability records
// for products missing from the embedded table.
const ContributingProducts = "https://muurk.github.io/ledble/contributing/products/"

// GettingStarted is the quick start guide for new users.
const GettingStarted = "https://muurk.github.io/ledble/getting-started/"
