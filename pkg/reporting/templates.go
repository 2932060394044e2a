/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for model reports. Self contained (no external scripts or
fonts) so the page renders offline and prints cleanly to PDF.
*/

package reporting

// reportTemplate is the model report page
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Model}} - {{.Title}}</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            color: #333;
        }

        .container {
            max-width: 1100px;
            margin: 0 auto;
            padding: 20px;
        }

        .card {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 20px;
            padding: 24px 30px;
            margin-bottom: 24px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        .header {
            text-align: center;
        }

        .header h1 {
            color: #4a5568;
            font-size: 2.2rem;
            margin-bottom: 8px;
        }

        .header p {
            color: #718096;
        }

        h2 {
            color: #4a5568;
            margin-bottom: 14px;
        }

        .role {
            font-size: 0.8rem;
            text-transform: uppercase;
            color: #fff;
            background: #a0aec0;
            border-radius: 8px;
            padding: 2px 8px;
            margin-left: 8px;
            vertical-align: middle;
        }

        .role.output {
            background: #667eea;
        }

        svg.curve {
            width: 100%;
            max-width: 480px;
            background: #f7fafc;
            border-radius: 10px;
        }

        svg.curve polyline {
            fill: none;
            stroke-width: 2;
        }

        svg.curve polyline.aggregate {
            fill: rgba(102, 126, 234, 0.25);
            stroke: #4c51bf;
            stroke-dasharray: 4 2;
        }

        svg.curve line.marker {
            stroke: #e53e3e;
            stroke-width: 2;
        }

        table {
            width: 100%;
            border-collapse: collapse;
            margin-top: 12px;
        }

        th, td {
            text-align: left;
            padding: 6px 10px;
            border-bottom: 1px solid #e2e8f0;
        }

        th {
            color: #718096;
            font-weight: 600;
        }

        .swatch {
            display: inline-block;
            width: 12px;
            height: 12px;
            border-radius: 3px;
            margin-right: 6px;
        }

        .unfired {
            color: #c05621;
        }

        .footer {
            text-align: center;
            color: rgba(255, 255, 255, 0.85);
            font-size: 0.85rem;
        }
    </style>
</head>
<body>
<div class="container">
    <div class="card header">
        <h1 id="model-name">{{.Model}}</h1>
        <p>{{.Title}}{{if .Description}} &middot; {{.Description}}{{end}}</p>
    </div>

    {{with .Evaluation}}
    <div class="card" id="evaluation">
        <h2>Evaluation</h2>
        <p>Run {{.RunID}} &middot; {{.Duration}}</p>
        <table>
            <tr><th>Variable</th><th>Value</th><th></th></tr>
            {{range .Inputs}}
            <tr class="input-value" data-variable="{{.Name}}"><td>{{.Name}}</td><td>{{num .Value}}</td><td>input</td></tr>
            {{end}}
            {{range .Outputs}}
            <tr class="output-value{{if not .Fired}} unfired{{end}}" data-variable="{{.Name}}"><td>{{.Name}}</td><td>{{num .Value}}</td><td>{{if .Fired}}output{{else}}no rule fired{{end}}</td></tr>
            {{end}}
        </table>
    </div>
    {{end}}

    {{range .Variables}}
    <div class="card variable" id="var-{{.Name}}" data-role="{{.Role}}">
        <h2>{{.Name}} <span class="role {{.Role}}">{{.Role}}</span></h2>
        <p>Range [{{num .Min}}, {{num .Max}}]{{if .Value}} &middot; value {{num (deref .Value)}}{{end}}</p>
        <svg class="curve" viewBox="0 0 {{.Width}} {{.Height}}" xmlns="http://www.w3.org/2000/svg">
            {{if .Aggregate}}<polyline class="aggregate" points="{{.Aggregate}}"/>{{end}}
            {{range .Sets}}<polyline class="set" data-set="{{.Name}}" stroke="{{.Color}}" points="{{.Points}}"/>
            {{end}}
            {{if .Value}}<line class="marker" x1="{{.MarkerX}}" x2="{{.MarkerX}}" y1="0" y2="{{.Height}}"/>{{end}}
        </svg>
        <table>
            <tr><th>Set</th><th>Function</th><th>Range</th><th>Params</th><th>Degree</th></tr>
            {{range .Sets}}
            <tr class="set-row">
                <td><span class="swatch" style="background: {{.Color}}"></span>{{.Name}}</td>
                <td>{{.Function}}</td>
                <td>[{{num .Min}}, {{num .Max}}]</td>
                <td>{{range $i, $p := .Params}}{{if $i}}, {{end}}{{num $p}}{{end}}</td>
                <td>{{if .Degree}}{{pct (deref .Degree)}}{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <div class="card" id="rules">
        <h2>Rules</h2>
        <table>
            <tr><th>#</th><th>Rule</th><th>Weight</th><th>Strength</th></tr>
            {{range .Rules}}
            <tr class="rule">
                <td>{{.Index}}</td>
                <td>{{.Text}}</td>
                <td>{{num .Weight}}</td>
                <td class="strength">{{if .Strength}}{{num (deref .Strength)}}{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>

    <div class="footer">
        Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}{{if .Version}} &middot; fuzzylogic {{.Version}}{{end}}
    </div>
</div>
</body>
</html>
`
